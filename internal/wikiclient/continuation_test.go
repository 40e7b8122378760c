package wikiclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCursorPrefersTopLevelContinue(t *testing.T) {
	raw := map[string]json.RawMessage{
		"continue":       []byte(`{"cmcontinue": "abc"}`),
		"query-continue": []byte(`{"categorymembers": {"cmcontinue": "should-not-be-used"}}`),
	}
	c := extractCursor(raw)
	assert.Equal(t, "abc", c["cmcontinue"])
}

func TestExtractCursorFallsBackToQueryContinue(t *testing.T) {
	raw := map[string]json.RawMessage{
		"query-continue": []byte(`{"categorymembers": {"cmcontinue": "abc"}, "allpages": {"apcontinue": "def"}}`),
	}
	c := extractCursor(raw)
	assert.Equal(t, "abc", c["cmcontinue"])
	assert.Equal(t, "def", c["apcontinue"])
}

func TestExtractCursorEmptyWhenNeitherPresent(t *testing.T) {
	c := extractCursor(map[string]json.RawMessage{})
	assert.True(t, c.empty())
}

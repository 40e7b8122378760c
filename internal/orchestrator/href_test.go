package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeArchiveHrefRoundTripsThroughDecode(t *testing.T) {
	// The round-trip law only holds for ids whose decoded segments contain
	// no "/" themselves: a segment that decodes to "/" would be treated as
	// a path separator on the next encode, changing the segment count.
	for _, id := range []string{"Dog", "New_York_City", "Caf%C3%A9"} {
		assert.Equal(t, id, encodeArchiveHref(decodeArchiveHref(id)))
	}
}

func TestEncodeArchiveHrefEscapesSpecialCharacters(t *testing.T) {
	assert.Equal(t, "Caf%C3%A9", encodeArchiveHref("Café"))
	assert.Equal(t, "A/B", encodeArchiveHref("A/B"))
}

func TestArchivePathForArticleEscapesTitle(t *testing.T) {
	assert.Equal(t, "../A/Caf%C3%A9", archivePathForArticle("Café"))
}

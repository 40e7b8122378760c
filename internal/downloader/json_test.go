package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPrefix(t *testing.T) {
	prefix, suffix := splitPrefix("https://en.wikipedia.org/w/api.php?title=X")
	assert.Equal(t, "https://en.wikipedia.org/w/", prefix)
	assert.Equal(t, "api.php?title=X", suffix)

	prefix, suffix = splitPrefix("no-slash-here")
	assert.Equal(t, "", prefix)
	assert.Equal(t, "no-slash-here", suffix)
}

func TestSerializeDeserializeURLRoundTrip(t *testing.T) {
	c := newURLCache()

	a := SerializeURL(c, "https://en.wikipedia.org/w/api.php?title=A")
	b := SerializeURL(c, "https://en.wikipedia.org/w/api.php?title=B")
	assert.Equal(t, "_0_api.php?title=A", a)
	assert.Equal(t, "_0_api.php?title=B", b)

	assert.Equal(t, "https://en.wikipedia.org/w/api.php?title=A", DeserializeURL(c, a))
	assert.Equal(t, "https://en.wikipedia.org/w/api.php?title=B", DeserializeURL(c, b))
}

func TestSerializeURLOfDeserializeURLIsIdentityForRegisteredTokens(t *testing.T) {
	c := newURLCache()
	token := SerializeURL(c, "https://en.wikipedia.org/w/api.php?title=A")

	full := DeserializeURL(c, token)
	assert.Equal(t, token, SerializeURL(c, full))
}

func TestDeserializeURLLeavesNonTokenUntouched(t *testing.T) {
	c := newURLCache()
	assert.Equal(t, "https://example.com/x", DeserializeURL(c, "https://example.com/x"))
	assert.Equal(t, "_99_suffix", DeserializeURL(c, "_99_suffix"))
}

package renderer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPageMetaFindsStylesheetsAndFavicon(t *testing.T) {
	html := `<html><head>
		<link rel="stylesheet" href="/w/load.php?modules=site.styles">
		<link rel="stylesheet" href="/w/skins/vector.css">
		<link rel="icon" href="/static/favicon.ico">
	</head><body></body></html>`

	meta, errE := ExtractPageMeta(strings.NewReader(html))
	require.NoError(t, errE)
	assert.Equal(t, []string{"/w/load.php?modules=site.styles", "/w/skins/vector.css"}, meta.StylesheetHrefs)
	assert.Equal(t, "/static/favicon.ico", meta.FaviconHref)
}

func TestExtractPageMetaHandlesMissingFavicon(t *testing.T) {
	html := `<html><head></head><body></body></html>`

	meta, errE := ExtractPageMeta(strings.NewReader(html))
	require.NoError(t, errE)
	assert.Empty(t, meta.FaviconHref)
	assert.Empty(t, meta.StylesheetHrefs)
}

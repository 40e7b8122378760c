package rewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassCRemovesEmptyGalleryboxAndGallery(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="gallery">
			<div class="gallerybox"><img src="x.png"></div>
			<div class="gallerybox"></div>
		</div>
		<div class="gallery"><div class="gallerybox"></div></div>
	</body></html>`)
	r := New(Config{})
	r.passCStructural(doc)

	assert.Equal(t, 1, doc.Find(".gallerybox").Length())
	assert.Equal(t, 1, doc.Find(".gallery").Length())
}

func TestPassCRemovesClassBlacklist(t *testing.T) {
	doc := parseDoc(t, `<html><body><div class="infobox">x</div><p>keep</p></body></html>`)
	r := New(Config{ClassBlacklist: []string{"infobox"}})
	r.passCStructural(doc)
	assert.Equal(t, 0, doc.Find(".infobox").Length())
	assert.Equal(t, "keep", doc.Find("p").Text())
}

func TestPassCConvertsReferenceSpanToSup(t *testing.T) {
	doc := parseDoc(t, `<html><body><span rel="dc:references" id="ref1">[1]</span></body></html>`)
	r := New(Config{})
	r.passCStructural(doc)
	sup := doc.Find("sup")
	require.Equal(t, 1, sup.Length())
	id, _ := sup.Attr("id")
	assert.Equal(t, "ref1", id)
	assert.Equal(t, "[1]", sup.Text())
}

func TestPassCRemovesIDBlacklist(t *testing.T) {
	doc := parseDoc(t, `<html><body><div id="toc">x</div></body></html>`)
	r := New(Config{IDBlacklist: []string{"toc"}})
	r.passCStructural(doc)
	assert.Equal(t, 0, doc.Find("#toc").Length())
}

func TestPassCRemovesDisplayNoneFromForcedClasses(t *testing.T) {
	doc := parseDoc(t, `<html><body><div class="mw-collapsible" style="display:none; color:red">x</div></body></html>`)
	r := New(Config{DisplayForcingClasses: []string{"mw-collapsible"}})
	r.passCStructural(doc)
	style, _ := doc.Find("div").Attr("style")
	assert.NotContains(t, style, "display:none")
	assert.Contains(t, style, "color:red")
}

func TestPassCRemovesEmptyTrailingHeading(t *testing.T) {
	doc := parseDoc(t, `<html><body><section><h2>Trailing</h2></section></body></html>`)
	r := New(Config{})
	r.passCStructural(doc)
	assert.Equal(t, 0, doc.Find("h2").Length())
}

func TestPassCKeepsHeadingFollowedByContent(t *testing.T) {
	doc := parseDoc(t, `<html><body><section><h2>Kept</h2><p>body</p></section></body></html>`)
	r := New(Config{})
	r.passCStructural(doc)
	assert.Equal(t, 1, doc.Find("h2").Length())
}

func TestScrubAttributesRemovesParsoidMetadata(t *testing.T) {
	doc := parseDoc(t, `<html><body><p data-parsoid="x" typeof="mw:Transclusion" rel="mw:WikiLink" class="foo mw-bar">x</p></body></html>`)
	r := New(Config{ClassCallBlacklist: []string{"mw-bar"}})
	r.passCStructural(doc)

	p := doc.Find("p")
	_, hasParsoid := p.Attr("data-parsoid")
	assert.False(t, hasParsoid)
	_, hasTypeof := p.Attr("typeof")
	assert.False(t, hasTypeof)
	_, hasRel := p.Attr("rel")
	assert.False(t, hasRel)
	class, _ := p.Attr("class")
	assert.Equal(t, "foo", class)
}

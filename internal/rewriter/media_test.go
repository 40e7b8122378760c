package rewriter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func archivingRewriter() *Rewriter {
	return New(Config{
		ArchivePathForMedia: func(u string) (string, bool) {
			if u == "" {
				return "", false
			}
			return "../I/" + strings.TrimPrefix(u, "https://upload.example.org/"), true
		},
	})
}

func TestPassAMediaRewritesVideoAndPicksLowestResolutionSource(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<video poster="https://upload.example.org/poster.jpg" height="10">
			<source src="https://upload.example.org/hi.webm" data-file-width="1920" data-file-height="1080">
			<source src="https://upload.example.org/lo.webm" data-file-width="320" data-file-height="240">
		</video>
	</body></html>`)

	r := archivingRewriter()
	tasks := r.passAMedia(doc)

	video := doc.Find("video")
	_, hasControls := video.Attr("controls")
	assert.True(t, hasControls)
	height, _ := video.Attr("height")
	assert.Equal(t, "40", height)
	poster, _ := video.Attr("poster")
	assert.Equal(t, "../I/poster.jpg", poster)

	sources := doc.Find("source")
	require.Equal(t, 1, sources.Length())
	src, _ := sources.Attr("src")
	assert.Equal(t, "../I/lo.webm", src)

	assert.Len(t, tasks, 2)
}

func TestPassAMediaRemovesVideoWithNoSourceAndNoPoster(t *testing.T) {
	doc := parseDoc(t, `<html><body><video height="10"></video></body></html>`)
	r := archivingRewriter()
	tasks := r.passAMedia(doc)
	assert.Equal(t, 0, doc.Find("video").Length())
	assert.Empty(t, tasks)
}

func TestPassAMediaRemovesVideoWhenPicturesDisabled(t *testing.T) {
	doc := parseDoc(t, `<html><body><video poster="https://upload.example.org/p.jpg"></video></body></html>`)
	r := archivingRewriter()
	r.cfg.Flags.NoPictures = true
	r.passAMedia(doc)
	assert.Equal(t, 0, doc.Find("video").Length())
}

func TestPassAMediaSkipsSpecialFilePathImages(t *testing.T) {
	doc := parseDoc(t, `<html><body><img src="./Special:FilePath/Foo.png"></body></html>`)
	r := archivingRewriter()
	tasks := r.passAMedia(doc)
	assert.Empty(t, tasks)
	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "./Special:FilePath/Foo.png", src)
}

func TestPassAMediaRewritesImageSrc(t *testing.T) {
	doc := parseDoc(t, `<html><body><img src="https://upload.example.org/foo.png" srcset="a 1x" resource="./File:Foo.png"></body></html>`)
	r := archivingRewriter()
	tasks := r.passAMedia(doc)
	require.Len(t, tasks, 1)
	assert.Equal(t, "../I/foo.png", tasks[0].ArchivePath)

	img := doc.Find("img")
	src, _ := img.Attr("src")
	assert.Equal(t, "../I/foo.png", src)
	_, hasSrcset := img.Attr("srcset")
	assert.False(t, hasSrcset)
	_, hasResource := img.Attr("resource")
	assert.False(t, hasResource)
}

func TestPassAMediaDeletesImageWithUnparseableSource(t *testing.T) {
	doc := parseDoc(t, `<html><body><img src=""></body></html>`)
	r := New(Config{ArchivePathForMedia: func(string) (string, bool) { return "", false }})
	r.passAMedia(doc)
	assert.Equal(t, 0, doc.Find("img").Length())
}

func TestWrapThumbWrapsFigureWithComputedWidth(t *testing.T) {
	doc := parseDoc(t, `<html><body><figure class="mw-halign-right"><img width="100"><figcaption>caption</figcaption></figure></body></html>`)
	doc.Find("figure").Each(func(_ int, el *goquery.Selection) { wrapThumb(el) })

	div := doc.Find("div.thumb")
	require.Equal(t, 1, div.Length())
	style, _ := div.Attr("style")
	assert.Equal(t, "width:102px", style)
	assert.Contains(t, doc.Find(".thumbcaption").Text(), "caption")
}

func TestWrapThumbRemovesContainerWithoutMedia(t *testing.T) {
	doc := parseDoc(t, `<html><body><figure><figcaption>no image</figcaption></figure></body></html>`)
	doc.Find("figure").Each(func(_ int, el *goquery.Selection) { wrapThumb(el) })
	assert.Equal(t, 0, doc.Find("figure").Length())
	assert.Equal(t, 0, doc.Find("div.thumb").Length())
}

package rewriter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"gitlab.com/tozd/mwarchive/internal/model"
)

const minRaisedVideoHeight = 40

// passAMedia is Pass A: video/img rewriting and
// figure/frameless-image thumb wrapping. It returns every media file the
// surviving elements reference.
func (r *Rewriter) passAMedia(doc *goquery.Document) []model.FileTask {
	var media []model.FileTask

	if r.cfg.Flags.NoPictures || r.cfg.Flags.NoVideo || r.cfg.Flags.NoDetails {
		doc.Find("video").Remove()
	} else {
		doc.Find("video").Each(func(_ int, video *goquery.Selection) {
			media = append(media, r.rewriteVideo(video)...)
		})
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if task, ok := r.rewriteImage(img); ok {
			media = append(media, task)
		}
	})

	doc.Find("figure, span[typeof='mw:Image/Frameless']").Each(func(_ int, el *goquery.Selection) {
		wrapThumb(el)
	})

	return media
}

func (r *Rewriter) rewriteVideo(video *goquery.Selection) []model.FileTask {
	var tasks []model.FileTask

	poster, _ := video.Attr("poster")
	if video.Find("source").Length() == 0 && poster == "" {
		video.Remove()
		return nil
	}

	video.SetAttr("controls", "")
	if h, ok := video.Attr("height"); ok {
		if n, err := strconv.Atoi(h); err == nil && n < minRaisedVideoHeight {
			video.SetAttr("height", strconv.Itoa(minRaisedVideoHeight))
		}
	}

	if poster, ok := video.Attr("poster"); ok && poster != "" {
		if path, ok := r.cfg.ArchivePathForMedia(poster); ok {
			video.SetAttr("poster", path)
			tasks = append(tasks, model.FileTask{ArchivePath: path, SourceURL: poster, Namespace: "I"})
		}
	}

	sources := video.Find("source")
	type scored struct {
		sel   *goquery.Selection
		score int64
	}
	var ranked []scored
	sources.Each(func(_ int, s *goquery.Selection) {
		ranked = append(ranked, scored{sel: s, score: sourceResolution(s)})
	})
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	for i, s := range ranked {
		if i == 0 {
			if src, ok := s.sel.Attr("src"); ok && src != "" {
				if path, ok := r.cfg.ArchivePathForMedia(src); ok {
					s.sel.SetAttr("src", path)
					tasks = append(tasks, model.FileTask{ArchivePath: path, SourceURL: src, Namespace: "I"})
				}
			}
			continue
		}
		s.sel.Remove()
	}

	return tasks
}

// sourceResolution computes data-file-width*data-file-height, falling back
// to data-width/data-height.
func sourceResolution(s *goquery.Selection) int64 {
	w := attrInt(s, "data-file-width")
	h := attrInt(s, "data-file-height")
	if w == 0 {
		w = attrInt(s, "data-width")
	}
	if h == 0 {
		h = attrInt(s, "data-height")
	}
	return w * h
}

func attrInt(s *goquery.Selection, name string) int64 {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (r *Rewriter) rewriteImage(img *goquery.Selection) (model.FileTask, bool) {
	src, _ := img.Attr("src")
	if strings.HasPrefix(src, "./Special:FilePath/") {
		return model.FileTask{}, false
	}
	typeofAttr, _ := img.Attr("typeof")
	if isMathFallback(img, typeofAttr) {
		return model.FileTask{}, false
	}

	parent := img.Parent()
	if goquery.NodeName(parent) == "a" {
		targetMirrored, targetIsRedirect := r.linkTargetStatus(parent)
		if !targetMirrored && !targetIsRedirect {
			img = img.Unwrap()
		}
	}

	path, ok := r.cfg.ArchivePathForMedia(src)
	if !ok {
		img.Remove()
		return model.FileTask{}, false
	}

	img.SetAttr("src", path)
	img.RemoveAttr("resource")
	img.RemoveAttr("srcset")

	return model.FileTask{ArchivePath: path, SourceURL: src, Namespace: "I"}, true
}

func isMathFallback(img *goquery.Selection, typeofAttr string) bool {
	if strings.Contains(typeofAttr, "mw:Extension/math") {
		return true
	}
	class, _ := img.Attr("class")
	return strings.Contains(class, "mwe-math-fallback-image")
}

// linkTargetStatus reports whether the <a> wrapping an image points at a
// mirrored article, or at a known redirect to one.
func (r *Rewriter) linkTargetStatus(a *goquery.Selection) (mirrored, isRedirect bool) {
	href, ok := a.Attr("href")
	if !ok {
		return false, false
	}
	title := titleFromHref(href)
	if title == "" {
		return false, false
	}
	if r.cfg.IsMirrored != nil && r.cfg.IsMirrored(title) {
		return true, false
	}
	if r.cfg.RedirectTarget != nil {
		if _, ok := r.cfg.RedirectTarget(title); ok {
			return false, true
		}
	}
	return false, false
}

func titleFromHref(href string) string {
	href = strings.TrimPrefix(href, "./")
	href = strings.TrimPrefix(href, "/wiki/")
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	return href
}

// wrapThumb wraps el (a <figure> or Frameless <span>) into a thumb div:
// class derived from mw-halign-*, caption copied into a thumbcaption
// child, inner width computed as imageWidth+2. Deletes the container if it
// has no image/video child.
func wrapThumb(el *goquery.Selection) {
	media := el.Find("img, video").First()
	if media.Length() == 0 {
		el.Remove()
		return
	}

	class, _ := el.Attr("class")
	thumbClass := thumbAlignClass(class, el)

	width := attrInt(media, "width")
	innerWidth := width + 2

	caption := el.Find("figcaption").First()
	var captionHTML string
	if caption.Length() > 0 {
		captionHTML, _ = caption.Html()
	}

	mediaHTML, _ := goquery.OuterHtml(media)

	thumbHTML := `<div class="` + thumbClass + `" style="width:` + strconv.FormatInt(innerWidth, 10) + `px">` +
		mediaHTML + `<div class="thumbcaption">` + captionHTML + `</div></div>`

	if thumbClass == "center" {
		thumbHTML = "<center>" + thumbHTML + "</center>"
	}

	el.ReplaceWithHtml(thumbHTML)
}

func thumbAlignClass(class string, el *goquery.Selection) string {
	switch {
	case strings.Contains(class, "mw-halign-right"):
		return "thumb tright"
	case strings.Contains(class, "mw-halign-left"):
		return "thumb tleft"
	case strings.Contains(class, "mw-halign-center"):
		return "center"
	default:
		return "thumb tright"
	}
}

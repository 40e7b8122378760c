package rewriter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/tozd/go/errors"
)

// TemplateData carries everything the templating step, run after Pass C,
// needs to merge the rewritten body into a full archive page.
type TemplateData struct {
	Title          string
	Direction      string
	ModuleStyles   []string
	ModuleScripts  []string
	SubpagePrefix  string
	HasSubpages    bool
	Creator        string
	Date           string
	ArticleURL     string
	Lat, Lon       float64
	HasCoordinates bool
	Minify         bool
}

// renderTemplate wraps the rewritten body (already cleaned by Pass C) with
// the archive page shell: module references, direction, title, an optional
// subpage breadcrumb, a footer wrapped in an htdig_noindex comment, and an
// optional geo.position meta tag.
func renderTemplate(doc *goquery.Document, t TemplateData) (string, errors.E) {
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", errors.WithStack(err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html dir="` + escapeAttr(t.Direction) + `">` + "\n")
	b.WriteString("<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + escapeText(t.Title) + "</title>\n")

	for _, href := range t.ModuleStyles {
		b.WriteString(`<link rel="stylesheet" href="` + escapeAttr(href) + `">` + "\n")
	}
	for _, src := range t.ModuleScripts {
		b.WriteString(`<script src="` + escapeAttr(src) + `"></script>` + "\n")
	}

	if t.HasCoordinates {
		b.WriteString(`<meta name="geo.position" content="` + formatGeoPosition(t.Lat, t.Lon) + `">` + "\n")
	}

	b.WriteString("</head>\n<body>\n")

	if t.HasSubpages && t.SubpagePrefix != "" {
		b.WriteString(renderBreadcrumb(t.SubpagePrefix, t.Title))
	}

	b.WriteString(body)

	b.WriteString("\n<!--htdig_noindex-->\n")
	b.WriteString(renderFooter(t))
	b.WriteString("\n<!--/htdig_noindex-->\n")

	b.WriteString("</body>\n</html>\n")

	out := b.String()
	if t.Minify {
		out = minifyConservative(out)
	}
	return out, nil
}

func renderBreadcrumb(prefix, title string) string {
	return `<div class="subpage-breadcrumb">` + escapeText(prefix) + " / " + escapeText(title) + "</div>\n"
}

func renderFooter(t TemplateData) string {
	var b strings.Builder
	b.WriteString(`<footer class="archive-footer">`)
	if t.Creator != "" {
		b.WriteString(escapeText(t.Creator))
	}
	if t.Date != "" {
		b.WriteString(" &middot; " + escapeText(t.Date))
	}
	if t.ArticleURL != "" {
		b.WriteString(` &middot; <a href="` + escapeAttr(t.ArticleURL) + `">` + escapeText(t.ArticleURL) + "</a>")
	}
	b.WriteString("</footer>")
	return b.String()
}

func formatGeoPosition(lat, lon float64) string {
	return formatGeoURI(lat, lon)[len("geo:"):]
}

// minifyConservative applies a fixed, conservative whitespace-collapsing
// option set: repeated blank lines are collapsed to one and trailing line
// whitespace is trimmed, nothing structural is touched.
func minifyConservative(html string) string {
	lines := strings.Split(html, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

func escapeText(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

func escapeAttr(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

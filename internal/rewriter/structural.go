package rewriter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var headingLevels = []string{"h5", "h4", "h3", "h2", "h1"}

// passCStructural is the blacklist-driven cleanup pass that runs after URL
// rewriting: besides a few fixed removals (link/input elements, empty
// li/span, empty gallery boxes and galleries), it removes elements by the
// configured class blacklists.
func (r *Rewriter) passCStructural(doc *goquery.Document) {
	doc.Find("link, input").Remove()
	if r.cfg.Flags.NoPictures {
		doc.Find("map").Remove()
	}

	removeEmpty(doc, "li")
	removeEmpty(doc, "span")

	doc.Find(".gallerybox").Each(func(_ int, box *goquery.Selection) {
		if box.Find("img, audio, video").Length() == 0 {
			box.Remove()
		}
	})
	doc.Find(".gallery").Each(func(_ int, gallery *goquery.Selection) {
		if gallery.Find(".gallerybox").Length() == 0 {
			gallery.Remove()
		}
	})

	removeByClassList(doc, r.cfg.ClassBlacklist)
	removeNoLinkOnly(doc, r.cfg.NoLinkOnlyBlacklist)
	if r.cfg.Flags.NoDetails {
		removeByClassList(doc, r.cfg.DetailsBlacklist)
	}

	doc.Find("span[rel='dc:references']").Each(func(_ int, span *goquery.Selection) {
		id, _ := span.Attr("id")
		html, _ := span.Html()
		if strings.TrimSpace(html) == "" {
			span.Remove()
			return
		}
		sup := "<sup"
		if id != "" {
			sup += ` id="` + id + `"`
		}
		sup += ">" + html + "</sup>"
		span.ReplaceWithHtml(sup)
	})

	removeByIDList(doc, r.cfg.IDBlacklist)

	for _, class := range r.cfg.DisplayForcingClasses {
		doc.Find("." + class).Each(func(_ int, el *goquery.Selection) {
			style, ok := el.Attr("style")
			if !ok {
				return
			}
			el.SetAttr("style", removeDisplayNone(style))
		})
	}

	if !r.cfg.Flags.NoDetails {
		removeEmptyHeadings(doc)
	}

	scrubAttributes(doc, r.cfg.ClassCallBlacklist)
}

func removeEmpty(doc *goquery.Document, tag string) {
	doc.Find(tag).Each(func(_ int, el *goquery.Selection) {
		if strings.TrimSpace(el.Text()) == "" && el.Children().Length() == 0 {
			el.Remove()
		}
	})
}

func removeByClassList(doc *goquery.Document, classes []string) {
	for _, class := range classes {
		doc.Find("." + class).Remove()
	}
}

// removeNoLinkOnly deletes elements matching classes whose only content is
// a single link (a secondary, narrower blacklist pass).
func removeNoLinkOnly(doc *goquery.Document, classes []string) {
	for _, class := range classes {
		doc.Find("." + class).Each(func(_ int, el *goquery.Selection) {
			links := el.Find("a")
			text := strings.TrimSpace(el.Text())
			linkText := strings.TrimSpace(links.Text())
			if links.Length() == 1 && text == linkText {
				el.Remove()
			}
		})
	}
}

func removeByIDList(doc *goquery.Document, ids []string) {
	for _, id := range ids {
		doc.Find("#" + id).Remove()
	}
}

func removeDisplayNone(style string) string {
	parts := strings.Split(style, ";")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.Contains(strings.ReplaceAll(strings.ToLower(p), " ", ""), "display:none") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.TrimSpace(strings.Join(kept, ";"))
}

// removeEmptyHeadings walks heading levels 5 down to 1: a heading with no
// following sibling, or one followed immediately by another heading of
// equal-or-lower level, is deleted — unless its parent is <summary>.
func removeEmptyHeadings(doc *goquery.Document) {
	for _, level := range headingLevels {
		doc.Find(level).Each(func(_ int, h *goquery.Selection) {
			if strings.ToUpper(goquery.NodeName(h.Parent())) == "SUMMARY" {
				return
			}
			next := h.Next()
			if next.Length() == 0 {
				h.Remove()
				return
			}
			if isHeading(goquery.NodeName(next)) && headingLevelRank(goquery.NodeName(next)) <= headingLevelRank(goquery.NodeName(h)) {
				h.Remove()
			}
		})
	}
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	default:
		return false
	}
}

func headingLevelRank(tag string) int {
	if len(tag) != 2 || tag[0] != 'h' {
		return 0
	}
	return int(tag[1] - '0')
}

var scrubbedAttributes = []string{"data-parsoid", "typeof", "about", "data-mw"}

// scrubAttributes removes the fixed attribute list, any rel beginning with
// "mw:", and any class substring found in classCallBlacklist, from every
// elementfinal attribute scrub.
func scrubAttributes(doc *goquery.Document, classCallBlacklist []string) {
	doc.Find("*").Each(func(_ int, el *goquery.Selection) {
		for _, attr := range scrubbedAttributes {
			el.RemoveAttr(attr)
		}
		if rel, ok := el.Attr("rel"); ok && strings.HasPrefix(rel, "mw:") {
			el.RemoveAttr("rel")
		}
		if len(classCallBlacklist) == 0 {
			return
		}
		class, ok := el.Attr("class")
		if !ok {
			return
		}
		classes := strings.Fields(class)
		kept := classes[:0]
		for _, c := range classes {
			blocked := false
			for _, bad := range classCallBlacklist {
				if strings.Contains(c, bad) {
					blocked = true
					break
				}
			}
			if !blocked {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			el.RemoveAttr("class")
		} else {
			el.SetAttr("class", strings.Join(kept, " "))
		}
	})
}

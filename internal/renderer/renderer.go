// Package renderer is the Renderer component: given the raw JSON
// from one of the three upstream shapes (mobile-sections, visualeditor,
// local parsoid pagebundle), it assembles the article's body HTML,
// dispatching on whether REST is available and whether the
// article is the main page, and splitting oversized category listings
// into shards, using a selector-driven extraction idiom throughout.
package renderer

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/model"
)

// maxSubCategoriesPerShard is the category-pagination threshold.
const maxSubCategoriesPerShard = 200

// RenderedArticle groups one article's body HTML with its display title.
// Dispatch and DisplayTitle return these parts separately; nothing in this
// package constructs a RenderedArticle.
type RenderedArticle struct {
	ArticleID    string
	DisplayTitle string
	BodyHTML     string
}

// Dispatch chooses the rendering path for one article's raw API response
// and returns the assembled body HTML.
func Dispatch(raw map[string]any, isMainPage, restAvailable bool) (string, errors.E) {
	if isMainPage || !restAvailable {
		return desktopPath(raw)
	}
	return mobileSectionsPath(raw)
}

// desktopPath prefers visualeditor.content, else parse.text['*'], else
// html.body.
func desktopPath(raw map[string]any) (string, errors.E) {
	if ve, ok := raw["visualeditor"].(map[string]any); ok {
		if content, ok := ve["content"].(string); ok && content != "" {
			return content, nil
		}
	}
	if parse, ok := raw["parse"].(map[string]any); ok {
		if text, ok := parse["text"].(map[string]any); ok {
			if star, ok := text["*"].(string); ok && star != "" {
				return star, nil
			}
		}
	}
	if html, ok := raw["html"].(map[string]any); ok {
		if body, ok := html["body"].(string); ok {
			return body, nil
		}
	}
	return "", errors.New("no renderable content found in desktop response shapes")
}

// mobileSectionsPath renders the lead via the lead-section template, then
// walks remaining.sections in order, substituting each section's
// placeholder anchor.
func mobileSectionsPath(raw map[string]any) (string, errors.E) {
	lead, ok := raw["lead"].(map[string]any)
	if !ok {
		return "", errors.New("mobile-sections response missing lead")
	}
	leadText, _ := lead["sections"].([]any)
	var leadHTML string
	if len(leadText) > 0 {
		if first, ok := leadText[0].(map[string]any); ok {
			leadHTML, _ = first["text"].(string)
		}
	} else if text, ok := lead["text"].(string); ok {
		leadHTML = text
	}

	// Every rendered part is followed by the placeholder for the next
	// section index, which a subsection replaces and a top-level section
	// clears.
	body := renderLeadTemplate(leadHTML) + "__SUB_LEVEL_SECTION_0__"

	remaining, _ := raw["remaining"].(map[string]any)
	sectionsRaw, _ := remaining["sections"].([]any)

	for i, s := range sectionsRaw {
		section, ok := s.(map[string]any)
		if !ok {
			continue
		}
		text, _ := section["text"].(string)
		tocLevel := 0
		if tl, ok := section["toclevel"].(float64); ok {
			tocLevel = int(tl)
		}
		placeholder := fmt.Sprintf("__SUB_LEVEL_SECTION_%d__", i)
		next := fmt.Sprintf("__SUB_LEVEL_SECTION_%d__", i+1)

		var replacement string
		if tocLevel <= 1 {
			replacement = ""
			body = strings.Replace(body, placeholder, replacement, 1)
			body += renderSectionTemplate(section, text) + next
		} else {
			replacement = renderSubsectionTemplate(section, text) + next
			body = strings.Replace(body, placeholder, replacement, 1)
		}
	}

	// Clear the trailing placeholder for sections.length, left over after
	// the last section's own anchor has already been consumed.
	trailing := fmt.Sprintf("__SUB_LEVEL_SECTION_%d__", len(sectionsRaw))
	body = strings.Replace(body, trailing, "", 1)

	return body, nil
}

func renderLeadTemplate(html string) string {
	return html
}

func renderSectionTemplate(section map[string]any, text string) string {
	anchor, _ := section["anchor"].(string)
	line, _ := section["line"].(string)
	return fmt.Sprintf(`<section id="%s"><h2>%s</h2>%s</section>`, anchor, line, text)
}

func renderSubsectionTemplate(section map[string]any, text string) string {
	anchor, _ := section["anchor"].(string)
	line, _ := section["line"].(string)
	tocLevel := 2
	if tl, ok := section["toclevel"].(float64); ok {
		tocLevel = int(tl)
	}
	level := tocLevel + 1
	if level > 6 {
		level = 6
	}
	return fmt.Sprintf(`<section id="%s"><h%d>%s</h%d>%s</section>`, anchor, level, line, level, text)
}

// DisplayTitle extracts the article's display title from the rendered
// document's <title> element if present, otherwise falls back to
// displaytitle from the lead, otherwise the article id with
// underscores->spaces.
func DisplayTitle(doc *goquery.Document, raw map[string]any, articleID string) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if lead, ok := raw["lead"].(map[string]any); ok {
		if dt, ok := lead["displaytitle"].(string); ok && dt != "" {
			return dt
		}
	}
	return strings.ReplaceAll(articleID, "_", " ")
}

// ShardCategory splits an ArticleDetail whose SubCategories exceeds
// maxSubCategoriesPerShard into ceil(N/200) shards, each its own
// ArticleDetail linked via Prev/NextArticleID. Shard 0 keeps the original id; shard i>0 is suffixed
// "__i".
func ShardCategory(detail model.ArticleDetail) []model.ArticleDetail {
	n := len(detail.SubCategories)
	if n <= maxSubCategoriesPerShard {
		return []model.ArticleDetail{detail}
	}

	shardCount := int(math.Ceil(float64(n) / float64(maxSubCategoriesPerShard)))
	shards := make([]model.ArticleDetail, 0, shardCount)

	for i := 0; i < shardCount; i++ {
		start := i * maxSubCategoriesPerShard
		end := start + maxSubCategoriesPerShard
		if end > n {
			end = n
		}

		shard := detail
		shard.SubCategories = detail.SubCategories[start:end]
		if i == 0 {
			shard.Title = detail.Title
		} else {
			shard.Title = fmt.Sprintf("%s__%d", detail.Title, i)
		}

		shards = append(shards, shard)
	}

	for i := range shards {
		if i > 0 {
			shards[i].PrevArticleID = shards[i-1].Title
		}
		if i < len(shards)-1 {
			shards[i].NextArticleID = shards[i+1].Title
		}
	}

	return shards
}

// AlphabetGroup is one first-letter bucket of an alphabetically grouped
// page listing.
type AlphabetGroup struct {
	Letter string
	Refs   []model.PageRef
}

// GroupAlphabetically decorates a sub-category or sub-page listing by
// bucketing refs under the upper-cased first rune of their title, buckets
// sorted by letter and each bucket sorted by title.
func GroupAlphabetically(refs []model.PageRef) []AlphabetGroup {
	buckets := map[string][]model.PageRef{}
	for _, ref := range refs {
		letter := firstLetter(ref.Title)
		buckets[letter] = append(buckets[letter], ref)
	}

	letters := make([]string, 0, len(buckets))
	for letter := range buckets {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	groups := make([]AlphabetGroup, 0, len(letters))
	for _, letter := range letters {
		bucket := buckets[letter]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Title < bucket[j].Title })
		groups = append(groups, AlphabetGroup{Letter: letter, Refs: bucket})
	}
	return groups
}

func firstLetter(title string) string {
	r := []rune(title)
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[0]))
}

// RenderCategoryListing builds the alphabetically grouped sub-category and
// sub-page listing fragment appended to a category article's body.
func RenderCategoryListing(subCategories, pages []model.PageRef) string {
	var b strings.Builder
	writeGroupedListing(&b, "mw-subcategories", "Subcategories", GroupAlphabetically(subCategories))
	writeGroupedListing(&b, "mw-pages", "Pages", GroupAlphabetically(pages))
	return b.String()
}

func writeGroupedListing(b *strings.Builder, class, heading string, groups []AlphabetGroup) {
	if len(groups) == 0 {
		return
	}
	b.WriteString(`<div class="` + class + `">` + "\n")
	b.WriteString("<h2>" + heading + "</h2>\n")
	for _, group := range groups {
		b.WriteString(`<h3 class="mw-category-group">` + group.Letter + "</h3>\n<ul>\n")
		for _, ref := range group.Refs {
			b.WriteString("<li>" + html.EscapeString(strings.ReplaceAll(ref.Title, "_", " ")) + "</li>\n")
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n")
}

package renderer_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tozd/mwarchive/internal/model"
	"gitlab.com/tozd/mwarchive/internal/renderer"
)

func emptyDocument(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)
	return doc
}

func TestDispatchMainPagePrefersDesktop(t *testing.T) {
	raw := map[string]any{
		"visualeditor": map[string]any{"content": "<p>main page</p>"},
	}
	body, err := renderer.Dispatch(raw, true, true)
	require.NoError(t, err)
	assert.Equal(t, "<p>main page</p>", body)
}

func TestDispatchNonMainPageUsesMobileSections(t *testing.T) {
	raw := map[string]any{
		"lead": map[string]any{
			"text": "<p>lead</p>",
		},
		"remaining": map[string]any{
			"sections": []any{
				map[string]any{"toclevel": float64(1), "anchor": "History", "line": "History", "text": "<p>history</p>"},
			},
		},
	}
	body, err := renderer.Dispatch(raw, false, true)
	require.NoError(t, err)
	assert.Contains(t, body, "<p>lead</p>")
	assert.Contains(t, body, "History")
	assert.Contains(t, body, "<p>history</p>")
}

func TestDesktopPathFallsBackToParseText(t *testing.T) {
	raw := map[string]any{
		"parse": map[string]any{
			"text": map[string]any{"*": "<p>parsed</p>"},
		},
	}
	body, err := renderer.Dispatch(raw, true, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>parsed</p>", body)
}

func TestDesktopPathFallsBackToHTMLBody(t *testing.T) {
	raw := map[string]any{
		"html": map[string]any{"body": "<p>raw body</p>"},
	}
	body, err := renderer.Dispatch(raw, true, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>raw body</p>", body)
}

func TestDesktopPathErrorsWhenNothingRenderable(t *testing.T) {
	_, err := renderer.Dispatch(map[string]any{}, true, false)
	assert.Error(t, err)
}

func TestDisplayTitleFallsBackToArticleID(t *testing.T) {
	title := renderer.DisplayTitle(emptyDocument(t), map[string]any{}, "Foo_Bar")
	assert.Equal(t, "Foo Bar", title)
}

func TestShardCategorySplitsOversizedSubcategories(t *testing.T) {
	detail := model.ArticleDetail{Title: "Category:Big"}
	for i := 0; i < 450; i++ {
		detail.SubCategories = append(detail.SubCategories, model.PageRef{Title: "Sub"})
	}

	shards := renderer.ShardCategory(detail)
	require.Len(t, shards, 3)
	assert.Equal(t, "Category:Big", shards[0].Title)
	assert.Equal(t, "Category:Big__1", shards[1].Title)
	assert.Equal(t, "Category:Big__2", shards[2].Title)
	assert.Equal(t, "Category:Big__1", shards[0].NextArticleID)
	assert.Equal(t, "Category:Big", shards[1].PrevArticleID)
	assert.Len(t, shards[2].SubCategories, 50)
}

func TestShardCategoryLeavesSmallCategoriesUnsplit(t *testing.T) {
	detail := model.ArticleDetail{Title: "Category:Small", SubCategories: []model.PageRef{{Title: "A"}}}
	shards := renderer.ShardCategory(detail)
	require.Len(t, shards, 1)
	assert.Equal(t, detail, shards[0])
}

func TestGroupAlphabeticallyBucketsAndSortsByLetterAndTitle(t *testing.T) {
	refs := []model.PageRef{
		{Title: "Banana"},
		{Title: "apple"},
		{Title: "Avocado"},
		{Title: "cherry"},
	}

	groups := renderer.GroupAlphabetically(refs)
	require.Len(t, groups, 3)
	assert.Equal(t, "A", groups[0].Letter)
	assert.Equal(t, []string{"Avocado", "apple"}, []string{groups[0].Refs[0].Title, groups[0].Refs[1].Title})
	assert.Equal(t, "B", groups[1].Letter)
	assert.Equal(t, "C", groups[2].Letter)
}

func TestRenderCategoryListingEscapesTitlesAndOmitsEmptyGroups(t *testing.T) {
	listing := renderer.RenderCategoryListing(
		[]model.PageRef{{Title: "Cats_&_Dogs"}},
		nil,
	)
	assert.Contains(t, listing, "mw-subcategories")
	assert.Contains(t, listing, "Cats &amp; Dogs")
	assert.NotContains(t, listing, "mw-pages")
}

package wikiclient

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSubCategoriesFollowsContinuation(t *testing.T) {
	var requests int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("cmcontinue") == "" {
			fmt.Fprint(w, `{
				"continue": {"cmcontinue": "page2"},
				"query": {"categorymembers": [{"pageid": 1, "ns": 0, "title": "Cat A"}]}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"query": {"categorymembers": [{"pageid": 2, "ns": 0, "title": "Cat B"}]}
		}`)
	})

	refs, errE := c.GetSubCategories(context.Background(), "Category:Animals", "")
	require.NoError(t, errE)
	require.Len(t, refs, 2)
	assert.Equal(t, "Cat_A", refs[0].Title)
	assert.Equal(t, "Cat_B", refs[1].Title)
	assert.Equal(t, 2, requests)
}

func TestGetSubCategoriesFollowsQueryContinueFallback(t *testing.T) {
	var requests int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("cmcontinue") == "" {
			fmt.Fprint(w, `{
				"query-continue": {"categorymembers": {"cmcontinue": "page2"}},
				"query": {"categorymembers": [{"pageid": 1, "ns": 0, "title": "Cat A"}]}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"query": {"categorymembers": [{"pageid": 2, "ns": 0, "title": "Cat B"}]}
		}`)
	})

	refs, errE := c.GetSubCategories(context.Background(), "Category:Animals", "")
	require.NoError(t, errE)
	require.Len(t, refs, 2)
	assert.Equal(t, 2, requests)
}

func TestGetBacklinkRedirects(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"query": {"redirects": [{"pageid": 5, "ns": 0, "title": "Old Name"}]}
		}`)
	})

	redirects, errE := c.GetBacklinkRedirects(context.Background(), "New_Name")
	require.NoError(t, errE)
	require.Len(t, redirects, 1)
	assert.Equal(t, "Old_Name", redirects[0].From)
	assert.Equal(t, "New_Name", redirects[0].To)
}

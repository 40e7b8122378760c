package wikiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/downloader"
	"gitlab.com/tozd/mwarchive/internal/model"
)

type categoryMembersResponse struct {
	Error         *apiError       `json:"error,omitempty"`
	Warnings      json.RawMessage `json:"warnings,omitempty"`
	Continue      json.RawMessage `json:"continue,omitempty"`
	QueryContinue json.RawMessage `json:"query-continue,omitempty"`
	Query         struct {
		CategoryMembers []struct {
			PageID int64  `json:"pageid"`
			NS     int    `json:"ns"`
			Title  string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

// GetSubCategories recursively follows cmcontinue to enumerate every
// member of the category named title.
func (c *Client) GetSubCategories(ctx context.Context, title, cmcontinue string) ([]model.PageRef, errors.E) {
	var result []model.PageRef

	query := url.Values{}
	query.Set("action", "query")
	query.Set("format", "json")
	query.Set("list", "categorymembers")
	query.Set("cmtitle", title)
	query.Set("cmlimit", "max")
	if cmcontinue != "" {
		query.Set("cmcontinue", cmcontinue)
	}

	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		apiURL := fmt.Sprintf("%s?%s", c.APIURL, query.Encode())
		resp, errE := downloader.GetJSON[categoryMembersResponse](ctx, c.Downloader, apiURL)
		if errE != nil {
			return nil, errE
		}
		fatal, _ := c.checkRawErrors(resp.Error, resp.Warnings)
		if fatal != nil {
			return nil, fatal
		}

		for _, m := range resp.Query.CategoryMembers {
			result = append(result, model.PageRef{PageID: m.PageID, Namespace: m.NS, Title: c.spaceTitle(m.Title)})
		}

		raw := map[string]json.RawMessage{}
		if resp.Continue != nil {
			raw["continue"] = resp.Continue
		}
		if resp.QueryContinue != nil {
			raw["query-continue"] = resp.QueryContinue
		}
		cur := extractCursor(raw)
		if cmc, ok := cur["cmcontinue"]; ok {
			query.Set("cmcontinue", cmc)
			continue
		}
		break
	}

	return result, nil
}

type backlinksResponse struct {
	Error    *apiError       `json:"error,omitempty"`
	Warnings json.RawMessage `json:"warnings,omitempty"`
	Query    struct {
		Redirects []struct {
			PageID int64  `json:"pageid"`
			NS     int    `json:"ns"`
			Title  string `json:"title"`
		} `json:"redirects"`
	} `json:"query"`
}

// GetBacklinkRedirects fetches the redirects whose target is title in one
// request with rdlimit=max; an rdcontinue cursor in the response is not
// followed, so redirects beyond that first page are not returned.
func (c *Client) GetBacklinkRedirects(ctx context.Context, title string) ([]model.Redirect, errors.E) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("action", "query")
	query.Set("format", "json")
	query.Set("titles", title)
	query.Set("prop", "redirects")
	query.Set("rdlimit", "max")
	apiURL := fmt.Sprintf("%s?%s", c.APIURL, query.Encode())

	resp, errE := downloader.GetJSON[backlinksResponse](ctx, c.Downloader, apiURL)
	if errE != nil {
		return nil, errE
	}
	fatal, _ := c.checkRawErrors(resp.Error, resp.Warnings)
	if fatal != nil {
		return nil, fatal
	}

	result := make([]model.Redirect, 0, len(resp.Query.Redirects))
	for _, r := range resp.Query.Redirects {
		result = append(result, model.Redirect{From: c.spaceTitle(r.Title), To: title})
	}
	return result, nil
}

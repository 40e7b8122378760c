package wikiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/downloader"
	"gitlab.com/tozd/mwarchive/internal/model"
)

// articlePropsQuery builds the prop= value for getArticleDetailsByIds,
// omitting coordinates once the capability has been disabled by an
// upstream warning.
func (c *Client) articlePropsQuery() string {
	props := []string{"revisions", "categories", "redirects", "pageimages"}
	if !c.coordinatesDisabled {
		props = append(props, "coordinates")
	}
	return strings.Join(props, "|")
}

type pageJSON struct {
	PageID     int64  `json:"pageid"`
	Namespace  int    `json:"ns"`
	Title      string `json:"title"`
	Missing    *struct{} `json:"missing,omitempty"`
	Revisions  []struct {
		RevID int64 `json:"revid"`
	} `json:"revisions,omitempty"`
	Coordinates []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates,omitempty"`
	Redirects []struct {
		PageID int64  `json:"pageid"`
		NS     int    `json:"ns"`
		Title  string `json:"title"`
	} `json:"redirects,omitempty"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories,omitempty"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail,omitempty"`
}

type articlesAPIResponse struct {
	Error        *apiError                  `json:"error,omitempty"`
	Warnings     json.RawMessage            `json:"warnings,omitempty"`
	Continue     json.RawMessage            `json:"continue,omitempty"`
	QueryContinue json.RawMessage           `json:"query-continue,omitempty"`
	Query        struct {
		Pages map[string]pageJSON `json:"pages"`
	} `json:"query"`
}

func (r *articlesAPIResponse) toRaw() map[string]json.RawMessage {
	raw := map[string]json.RawMessage{}
	if r.Continue != nil {
		raw["continue"] = r.Continue
	}
	if r.QueryContinue != nil {
		raw["query-continue"] = r.QueryContinue
	}
	return raw
}

// spaceTitle applies the configured space delimiter, per the response
// normalization rule: "re-keys by title (with spaces->delimiter)".
func (c *Client) spaceTitle(title string) string {
	return strings.ReplaceAll(title, " ", c.SpaceDelimiter)
}

func pageToDetail(p pageJSON, title string) model.ArticleDetail {
	d := model.ArticleDetail{
		Title:     title,
		PageID:    p.PageID,
		Namespace: p.Namespace,
	}
	if len(p.Revisions) > 0 {
		d.RevisionID = p.Revisions[0].RevID
	}
	if len(p.Coordinates) > 0 {
		d.Coordinates = &model.Coordinates{Lat: p.Coordinates[0].Lat, Lon: p.Coordinates[0].Lon}
	}
	for _, r := range p.Redirects {
		d.Redirects = append(d.Redirects, model.PageRef{PageID: r.PageID, Namespace: r.NS, Title: r.Title})
	}
	for _, cat := range p.Categories {
		d.Categories = append(d.Categories, model.PageRef{Title: cat.Title})
	}
	if p.Thumbnail != nil {
		d.Thumbnail = p.Thumbnail.Source
	}
	return d
}

// mergeDetail folds a continuation page's props into an accumulating
// detail. Only the props present on the continuation page are applied —
// a non-continued prop already captured is left untouched, avoiding the
// duplicate-re-emission pitfall of naively overwriting every field.
func mergeDetail(existing model.ArticleDetail, p pageJSON) model.ArticleDetail {
	if len(p.Revisions) > 0 {
		existing.RevisionID = p.Revisions[0].RevID
	}
	if len(p.Coordinates) > 0 {
		existing.Coordinates = &model.Coordinates{Lat: p.Coordinates[0].Lat, Lon: p.Coordinates[0].Lon}
	}
	for _, r := range p.Redirects {
		existing.Redirects = append(existing.Redirects, model.PageRef{PageID: r.PageID, Namespace: r.NS, Title: r.Title})
	}
	for _, cat := range p.Categories {
		existing.Categories = append(existing.Categories, model.PageRef{Title: cat.Title})
	}
	if p.Thumbnail != nil {
		existing.Thumbnail = p.Thumbnail.Source
	}
	return existing
}

// GetArticleDetailsByIds batches titles into one query (|-separated),
// following the "continue" cursor (both shapes, see extractCursor) and
// every sub-query continuation (cocontinue, clcontinue, picontinue,
// rdcontinue) until all are exhausted, deep-merging partial responses.
func (c *Client) GetArticleDetailsByIds(ctx context.Context, titles []string, includeThumbnail bool) (map[string]model.ArticleDetail, errors.E) {
	result := map[string]model.ArticleDetail{}

	query := url.Values{}
	query.Set("action", "query")
	query.Set("format", "json")
	query.Set("titles", strings.Join(titles, "|"))
	query.Set("prop", c.articlePropsQuery())
	query.Set("rdlimit", "max")
	query.Set("colimit", "max")
	if includeThumbnail {
		query.Set("piprop", "thumbnail")
	}

	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		apiURL := fmt.Sprintf("%s?%s", c.APIURL, query.Encode())
		resp, errE := downloader.GetJSON[articlesAPIResponse](ctx, c.Downloader, apiURL)
		if errE != nil {
			return nil, errE
		}

		fatal, nonFatal := c.checkRawErrors(resp.Error, resp.Warnings)
		if fatal != nil {
			return nil, fatal
		}
		_ = nonFatal // logged by checkErrors; partial data below is still used

		for id, page := range resp.Query.Pages {
			_ = id
			if page.Missing != nil {
				continue
			}
			title := c.spaceTitle(page.Title)
			if existing, ok := result[title]; ok {
				result[title] = mergeDetail(existing, page)
			} else {
				result[title] = pageToDetail(page, title)
			}
		}

		cur := extractCursor(resp.toRaw())
		if cur.empty() {
			break
		}
		for k, v := range cur {
			query.Set(k, v)
		}
	}

	return result, nil
}

// GetArticleDetailsByNamespace enumerates one namespace via
// generator=allpages, draining inner prop continuations before
// returning, and returns the outer gapcontinue cursor so the caller can
// resume enumeration across runs.
func (c *Client) GetArticleDetailsByNamespace(ctx context.Context, namespace int, gapcontinue string) (map[string]model.ArticleDetail, string, errors.E) {
	result := map[string]model.ArticleDetail{}

	query := url.Values{}
	query.Set("action", "query")
	query.Set("format", "json")
	query.Set("generator", "allpages")
	query.Set("gapnamespace", strconv.Itoa(namespace))
	query.Set("gapfilterredir", "nonredirects")
	query.Set("gaplimit", "max")
	query.Set("rawcontinue", "true")
	query.Set("prop", c.articlePropsQuery())
	query.Set("rdlimit", "max")
	query.Set("colimit", "max")
	if gapcontinue != "" {
		query.Set("gapcontinue", gapcontinue)
	}

	nextGapContinue := ""

	for {
		if err := c.wait(ctx); err != nil {
			return nil, "", err
		}
		apiURL := fmt.Sprintf("%s?%s", c.APIURL, query.Encode())
		resp, errE := downloader.GetJSON[articlesAPIResponse](ctx, c.Downloader, apiURL)
		if errE != nil {
			return nil, "", errE
		}

		fatal, _ := c.checkRawErrors(resp.Error, resp.Warnings)
		if fatal != nil {
			return nil, "", fatal
		}

		for _, page := range resp.Query.Pages {
			if page.Missing != nil {
				continue
			}
			title := c.spaceTitle(page.Title)
			if existing, ok := result[title]; ok {
				result[title] = mergeDetail(existing, page)
			} else {
				result[title] = pageToDetail(page, title)
			}
		}

		cur := extractCursor(resp.toRaw())
		if gap, ok := cur["gapcontinue"]; ok {
			nextGapContinue = gap
			delete(cur, "gapcontinue")
		}
		if cur.empty() {
			break
		}
		for k, v := range cur {
			query.Set(k, v)
		}
	}

	return result, nextGapContinue, nil
}

// checkRawErrors adapts the articlesAPIResponse error/warning fields to
// the shared checkErrors logic.
func (c *Client) checkRawErrors(apiErr *apiError, warnings json.RawMessage) (fatal errors.E, nonFatal errors.E) {
	return c.checkErrors(&rawResponse{Error: apiErr, Warnings: warnings})
}

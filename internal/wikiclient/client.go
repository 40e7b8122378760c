// Package wikiclient provides typed read access to the remote wiki's query
// API, with continuation-cursor handling, response normalization, and
// capability-affecting warning detection.
package wikiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/downloader"
	"gitlab.com/tozd/mwarchive/internal/model"
)

// ErrDBError is raised when the upstream reports error.code == "DB_ERROR",
// a fatal condition that stops enumeration.
var ErrDBError = errors.Base("upstream database error")

// Client talks to one wiki's query API.
type Client struct {
	Downloader *downloader.Downloader
	APIURL     string
	SpaceDelimiter string

	limiter *rate.Limiter

	// coordinatesDisabled is set once a warnings.query entry mentions
	// "coordinates"; the client then stops requesting |coordinates.
	coordinatesDisabled bool
}

// New constructs a Wiki Client using d for all HTTP access.
func New(d *downloader.Downloader, apiURL, spaceDelimiter string) *Client {
	if spaceDelimiter == "" {
		spaceDelimiter = "_"
	}
	return &Client{
		Downloader:     d,
		APIURL:         apiURL,
		SpaceDelimiter: spaceDelimiter,
		limiter:        rate.NewLimiter(rate.Every(0), 1), // replaced by caller via SetRateLimit if desired
	}
}

// SetRateLimit bounds how often this client issues query requests.
func (c *Client) SetRateLimit(perSecond float64) {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (c *Client) wait(ctx context.Context) errors.E {
	if c.limiter == nil {
		return nil
	}
	return errors.WithStack(c.limiter.Wait(ctx))
}

// apiError is the shape of the "error" field the upstream may report.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type rawResponse struct {
	Error    *apiError                 `json:"error,omitempty"`
	Warnings json.RawMessage           `json:"warnings,omitempty"`
	Query    json.RawMessage           `json:"query,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

// checkErrors applies the query API's error semantics: a DB_ERROR is fatal; any
// other error is logged here and also returned to the caller as a non-fatal
// errors.E, and partial data is still usable; a warnings.query entry mentioning "coordinates" disables
// future |coordinates requests.
func (c *Client) checkErrors(resp *rawResponse) (fatal errors.E, nonFatal errors.E) {
	if resp.Error != nil {
		if resp.Error.Code == "DB_ERROR" {
			errE := errors.WithStack(ErrDBError)
			errors.Details(errE)["info"] = resp.Error.Info
			return errE, nil
		}
		errE := errors.Errorf("upstream error %s: %s", resp.Error.Code, resp.Error.Info)
		if c.Downloader != nil {
			c.Downloader.Logger.Warn().Err(errE).Msg("upstream API error")
		}
		nonFatal = errE
	}
	if len(resp.Warnings) > 0 {
		var warnings map[string]json.RawMessage
		if err := json.Unmarshal(resp.Warnings, &warnings); err == nil {
			if queryWarning, ok := warnings["query"]; ok {
				var w struct {
					Warnings string `json:"*"`
				}
				_ = json.Unmarshal(queryWarning, &w)
				if strings.Contains(w.Warnings, "coordinates") {
					c.coordinatesDisabled = true
				}
			}
		}
	}
	return nil, nonFatal
}

// siteinfoResponse is the decoded shape of a meta=siteinfo query.
type siteinfoResponse struct {
	Query struct {
		General struct {
			SiteName   string `json:"sitename"`
			MainPage   string `json:"mainpage"`
			Base       string `json:"base"`
			Lang       string `json:"lang"`
			Dir        string `json:"dir"`
			Server     string `json:"server"`
			ArticlePath string `json:"articlepath"`
		} `json:"general"`
		Namespaces map[string]struct {
			ID             int    `json:"id"`
			Case           string `json:"case"`
			Canonical      string `json:"canonical"`
			Name           string `json:"*"`
			Content        *bool  `json:"content,omitempty"`
			Subpages       *bool  `json:"subpages,omitempty"`
		} `json:"namespaces"`
	} `json:"query"`
}

// iso2to3 is a small, deliberately partial table: only the languages an
// offline wiki archiver is overwhelmingly likely to meet need a curated
// mapping, and an unknown ISO-2 code degrades to itself rather than
// failing metadata discovery.
var iso2to3 = map[string]string{ //nolint:gochecknoglobals
	"en": "eng", "fr": "fra", "de": "deu", "es": "spa", "it": "ita",
	"pt": "por", "ru": "rus", "zh": "zho", "ja": "jpn", "ar": "ara",
	"nl": "nld", "pl": "pol", "sv": "swe", "fi": "fin", "no": "nor",
}

// GetMetadata issues one siteinfo query and returns WikiMetadata with
// every namespace name variant registered.
func (c *Client) GetMetadata(ctx context.Context) (*model.WikiMetadata, errors.E) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("action", "query")
	query.Set("format", "json")
	query.Set("meta", "siteinfo")
	query.Set("siprop", "general|namespaces|namespacealiases|statistics")
	apiURL := fmt.Sprintf("%s?%s", c.APIURL, query.Encode())

	resp, errE := downloader.GetJSON[siteinfoResponse](ctx, c.Downloader, apiURL)
	if errE != nil {
		return nil, errE
	}

	articlePath := strings.TrimSuffix(resp.Query.General.ArticlePath, "$1")

	meta := &model.WikiMetadata{
		BaseURL:      ensureTrailingSlash(resp.Query.General.Server + articlePath),
		APIURL:       ensureTrailingSlash(c.APIURL),
		MainPage:     strings.ReplaceAll(resp.Query.General.MainPage, " ", c.SpaceDelimiter),
		Direction:    defaultString(resp.Query.General.Dir, "ltr"),
		LanguageISO2: resp.Query.General.Lang,
		SiteName:     resp.Query.General.SiteName,
		Namespaces:   map[string]*model.Namespace{},
	}
	if iso3, ok := iso2to3[meta.LanguageISO2]; ok {
		meta.LanguageISO3 = iso3
	} else {
		meta.LanguageISO3 = meta.LanguageISO2
	}

	for _, ns := range resp.Query.Namespaces {
		record := &model.Namespace{
			ID:              ns.ID,
			Canonical:       ns.Canonical,
			Localized:       ns.Name,
			IsContent:       ns.Content != nil,
			AllowedSubpages: ns.Subpages != nil,
		}
		meta.RegisterNamespace(record)
	}

	return meta, nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"gitlab.com/tozd/go/errors"
)

// GetJSON issues a GET with Accept: application/json and decodes the body
// into a value of type T, consulting the scratch cache first so a run
// resuming after a crash does not re-issue requests it already has a
// cached response for.
func GetJSON[T any](ctx context.Context, d *Downloader, rawURL string) (T, errors.E) { //nolint:ireturn
	var zero T

	url := DeserializeURL(d.urls, rawURL)

	if d.Scratch != nil {
		if cached, _, ok, errE := d.Scratch.Get(url); errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("scratch cache get failed")
		} else if ok {
			var result T
			if err := json.Unmarshal(cached, &result); err == nil {
				return result, nil
			}
		}
	}

	var result T
	var raw []byte
	errE := d.withSlot(ctx, func() errors.E {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := d.Client.Do(req)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["url"] = url
			return errE
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			errE := errors.New("bad response status")
			errors.Details(errE)["url"] = url
			errors.Details(errE)["code"] = resp.StatusCode
			return errE
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			errE := errors.WithStack(err)
			errors.Details(errE)["url"] = url
			return errE
		}
		if err := json.Unmarshal(body, &result); err != nil {
			errE := errors.WithMessage(err, "json decode failure")
			errors.Details(errE)["url"] = url
			return errE
		}
		raw = body
		return nil
	})
	if errE != nil {
		return zero, errE
	}

	if d.Scratch != nil {
		if errE := d.Scratch.Put(url, raw, nil); errE != nil {
			d.Logger.Warn().Str("url", url).Err(errE).Msg("scratch cache put failed")
		}
	}

	return result, nil
}

// urlCache implements the serializeUrl/deserializeUrl compression scheme:
// a table mapping a short cache-key ("_<n>_") to a URL prefix, used to
// avoid repeatedly storing the same host+path prefix across many queued
// requests that share it.
type urlCache struct {
	mu       sync.Mutex
	prefixes []string
	index    map[string]int
}

func newURLCache() *urlCache {
	return &urlCache{index: map[string]int{}}
}

// splitPrefix divides a URL at its last '/' before any query string, so
// that "https://en.wikipedia.org/w/api.php?title=X" splits into prefix
// "https://en.wikipedia.org/w/" and suffix "api.php?title=X".
func splitPrefix(url string) (prefix, suffix string) {
	body := url
	query := ""
	if i := strings.IndexByte(url, '?'); i >= 0 {
		body = url[:i]
		query = url[i:]
	}
	i := strings.LastIndexByte(body, '/')
	if i < 0 {
		return "", url
	}
	return body[:i+1], body[i+1:] + query
}

// SerializeURL replaces url's host+path prefix with a short "_<n>_" token,
// registering the prefix in the cache's table the first time it is seen.
func SerializeURL(c *urlCache, url string) string {
	prefix, suffix := splitPrefix(url)
	if prefix == "" {
		return url
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.index[prefix]
	if !ok {
		idx = len(c.prefixes)
		c.prefixes = append(c.prefixes, prefix)
		c.index[prefix] = idx
	}
	return fmt.Sprintf("_%d_%s", idx, suffix)
}

// DeserializeURL expands a "_<n>_" token back into its full URL using the
// cache's table. A url that does not start with "_" is returned as-is.
func DeserializeURL(c *urlCache, url string) string {
	if !strings.HasPrefix(url, "_") {
		return url
	}
	rest := url[1:]
	sep := strings.IndexByte(rest, '_')
	if sep < 0 {
		return url
	}
	idxStr, suffix := rest[:sep], rest[sep+1:]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return url
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.prefixes) {
		return url
	}
	return c.prefixes[idx] + suffix
}

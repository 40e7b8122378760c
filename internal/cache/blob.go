package cache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"gitlab.com/tozd/go/errors"
)

// blobMemCacheSize bounds the in-process front cache placed in front of the
// (possibly remote) Blob Cache service, so a run that revisits the same
// image URL many times (e.g. an icon referenced from many pages) does not
// round-trip to the blob store for every occurrence.
const blobMemCacheSize = 4096

// stripHTTP removes a leading scheme from a URL, the key transform the
// Blob Cache uses so that http and https variants of the same resource
// share one cache entry.
func stripHTTP(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return u
}

// BlobObject is what the Blob Cache returns on a hit.
type BlobObject struct {
	Body []byte
	ETag string
}

// BlobCache is a thin client for the optional external content-addressed
// store keyed by stripHTTP(url), used to conditionally revalidate image
// downloads instead of refetching unchanged bytes every run.
type BlobCache struct {
	BaseURL string
	Client  *retryablehttp.Client

	mem    *lru.Cache[string, BlobObject]
	hits   uint64
	misses uint64
}

// NewBlobCache returns nil (no client) when baseURL is empty: the Blob
// Cache is optional, and the Downloader must treat a nil *BlobCache the
// same as a permanent miss.
func NewBlobCache(baseURL string, client *retryablehttp.Client) *BlobCache {
	if baseURL == "" {
		return nil
	}
	mem, err := lru.New[string, BlobObject](blobMemCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which blobMemCacheSize never is.
		panic(err)
	}
	return &BlobCache{BaseURL: strings.TrimSuffix(baseURL, "/"), Client: client, mem: mem}
}

// Stats reports the in-process front cache's hit and miss counts.
func (b *BlobCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&b.hits), atomic.LoadUint64(&b.misses)
}

func (b *BlobCache) objectURL(key string) string {
	return b.BaseURL + "/" + url.PathEscape(key)
}

// Get fetches the cached object for url's stripped key. A 404 is a normal
// cache miss, not an error.
func (b *BlobCache) Get(ctx context.Context, sourceURL string) (*BlobObject, errors.E) {
	if b == nil {
		return nil, nil
	}
	key := stripHTTP(sourceURL)

	if obj, ok := b.mem.Get(key); ok {
		atomic.AddUint64(&b.hits, 1)
		objCopy := obj
		return &objCopy, nil
	}
	atomic.AddUint64(&b.misses, 1)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.objectURL(key), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("blob cache: bad response status (%s) for %q", resp.Status, key)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	obj := BlobObject{Body: body, ETag: resp.Header.Get("ETag")}
	b.mem.Add(key, obj)
	return &obj, nil
}

// Put uploads body under url's stripped key with the given etag. Callers
// invoke this asynchronously so a slow blob store never blocks serving the
// response to the caller.
func (b *BlobCache) Put(ctx context.Context, sourceURL string, body []byte, etag string) errors.E {
	if b == nil || etag == "" {
		return nil
	}
	key := stripHTTP(sourceURL)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, b.objectURL(key), bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("ETag", etag)
	resp, err := b.Client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode/100 != 2 { //nolint:mnd
		return errors.Errorf("blob cache: bad PUT response status (%s) for %q", resp.Status, key)
	}
	b.mem.Add(key, BlobObject{Body: body, ETag: etag})
	return nil
}

package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlobCache(t *testing.T, handler http.HandlerFunc) *BlobCache {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil

	return NewBlobCache(server.URL, client)
}

func TestBlobCacheGetPopulatesFrontCache(t *testing.T) {
	var requests int
	bc := newTestBlobCache(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("ETag", "abc")
		w.Write([]byte("body")) //nolint:errcheck
	})

	obj, errE := bc.Get(context.Background(), "https://example.com/image.png")
	require.NoError(t, errE)
	require.NotNil(t, obj)
	assert.Equal(t, "abc", obj.ETag)

	obj2, errE := bc.Get(context.Background(), "http://example.com/image.png")
	require.NoError(t, errE)
	require.NotNil(t, obj2)

	assert.Equal(t, 1, requests)

	hits, misses := bc.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestBlobCacheGetTreatsMissAsNilWithoutError(t *testing.T) {
	bc := newTestBlobCache(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	obj, errE := bc.Get(context.Background(), "https://example.com/missing.png")
	require.NoError(t, errE)
	assert.Nil(t, obj)
}

func TestBlobCachePutSeedsFrontCache(t *testing.T) {
	var getRequests int
	bc := newTestBlobCache(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			getRequests++
			w.WriteHeader(http.StatusNotFound)
		}
	})

	errE := bc.Put(context.Background(), "https://example.com/image.png", []byte("body"), "etag-1")
	require.NoError(t, errE)

	obj, errE := bc.Get(context.Background(), "https://example.com/image.png")
	require.NoError(t, errE)
	require.NotNil(t, obj)
	assert.Equal(t, "etag-1", obj.ETag)
	assert.Zero(t, getRequests)
}

func TestNewBlobCacheNilWhenURLEmpty(t *testing.T) {
	assert.Nil(t, NewBlobCache("", nil))
}

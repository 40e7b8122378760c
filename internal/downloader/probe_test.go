package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUnavailableServer(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestProbeErrorsWithoutLocalFallback(t *testing.T) {
	down := newUnavailableServer(t)
	d := New(down, down, down, 1, time.Second, nil, nil, zerolog.Nop())

	errE := d.Probe(context.Background(), "Main_Page", false)
	require.Error(t, errE)
}

func TestProbeErrorsWhenLocalFallbackAllowedButUnconfigured(t *testing.T) {
	down := newUnavailableServer(t)
	d := New(down, down, down, 1, time.Second, nil, nil, zerolog.Nop())

	errE := d.Probe(context.Background(), "Main_Page", true)
	require.Error(t, errE)
}

func TestProbeSpawnsLocalFallbackAndRepointsBaseURLs(t *testing.T) {
	down := newUnavailableServer(t)
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(local.Close)

	d := New(down, down, down, 1, time.Second, nil, nil, zerolog.Nop())
	d.LocalParsoidCmd = []string{"sh", "-c", "sleep 5"}
	d.LocalMCSCmd = []string{"sh", "-c", "sleep 5"}
	d.LocalParsoidAddr = local.URL
	d.LocalMCSAddr = local.URL

	errE := d.Probe(context.Background(), "Main_Page", true)
	require.NoError(t, errE)
	assert.Equal(t, local.URL, d.BaseURL)
	assert.Equal(t, local.URL, d.BaseURLForMainPage)
	assert.Equal(t, local.URL, d.VEURL)
	assert.True(t, d.Capabilities.RESTAvailable)
}

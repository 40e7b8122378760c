package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStableAndTwentyHexChars(t *testing.T) {
	k1 := Key("https://example.com/wiki/Dog")
	k2 := Key("https://example.com/wiki/Dog")
	k3 := Key("https://example.com/wiki/Cat")

	assert.Len(t, k1, 20)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestScratchPutGetRoundTrip(t *testing.T) {
	s, errE := NewScratch(t.TempDir(), false)
	require.NoError(t, errE)

	headers := map[string][]string{"Etag": {"abc123"}}
	require.NoError(t, s.Put("https://example.com/wiki/Dog", []byte("body"), headers))

	body, h, ok, errE := s.Get("https://example.com/wiki/Dog")
	require.NoError(t, errE)
	require.True(t, ok)
	assert.Equal(t, []byte("body"), body)
	assert.Equal(t, []string{"abc123"}, h["Etag"])
}

func TestScratchGetMissingIsNotAnError(t *testing.T) {
	s, errE := NewScratch(t.TempDir(), false)
	require.NoError(t, errE)

	body, h, ok, errE := s.Get("https://example.com/wiki/Missing")
	require.NoError(t, errE)
	assert.False(t, ok)
	assert.Nil(t, body)
	assert.Nil(t, h)
}

func TestScratchCleanupRemovesOnlyOlderEntries(t *testing.T) {
	dir := t.TempDir()
	s, errE := NewScratch(dir, false)
	require.NoError(t, errE)

	require.NoError(t, s.Put("https://example.com/old", []byte("old"), map[string][]string{}))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, Key("https://example.com/old")), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(dir, Key("https://example.com/old")+".h"), old, old))

	require.NoError(t, s.Put("https://example.com/new", []byte("new"), map[string][]string{}))

	require.NoError(t, s.Cleanup())

	_, _, ok, errE := s.Get("https://example.com/old")
	require.NoError(t, errE)
	assert.False(t, ok, "entry older than the ref marker should have been removed")

	_, _, ok, errE = s.Get("https://example.com/new")
	require.NoError(t, errE)
	assert.True(t, ok, "entry newer than the ref marker should survive cleanup")
}

func TestScratchCleanupSkippedWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	s, errE := NewScratch(dir, true)
	require.NoError(t, errE)

	require.NoError(t, s.Put("https://example.com/old", []byte("old"), map[string][]string{}))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, Key("https://example.com/old")), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(dir, Key("https://example.com/old")+".h"), old, old))

	require.NoError(t, s.Cleanup())

	_, _, ok, errE := s.Get("https://example.com/old")
	require.NoError(t, errE)
	assert.True(t, ok, "SkipCacheCleaning should leave every entry in place")
}

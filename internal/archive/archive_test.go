package archive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tozd/mwarchive/internal/archive"
)

func TestDirectoryWriterWritesEntryUnderNamespace(t *testing.T) {
	dir := t.TempDir()
	w, errE := archive.NewDirectoryWriter(dir)
	require.NoError(t, errE)

	errE = w.AddEntry(archive.Entry{Namespace: archive.NamespaceArticle, Path: "London", Body: []byte("<html></html>")})
	require.NoError(t, errE)

	body, err := os.ReadFile(filepath.Join(dir, "A", "London"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
}

func TestDirectoryWriterDeduplicatesByNamespaceAndPath(t *testing.T) {
	dir := t.TempDir()
	w, errE := archive.NewDirectoryWriter(dir)
	require.NoError(t, errE)

	require.NoError(t, w.AddEntry(archive.Entry{Namespace: archive.NamespaceImage, Path: "foo.png", Body: []byte("first")}))
	require.NoError(t, w.AddEntry(archive.Entry{Namespace: archive.NamespaceImage, Path: "foo.png", Body: []byte("second")}))

	body, err := os.ReadFile(filepath.Join(dir, "I", "foo.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(body))
}

func TestDirectoryWriterRejectsEntriesAfterFinalize(t *testing.T) {
	dir := t.TempDir()
	w, errE := archive.NewDirectoryWriter(dir)
	require.NoError(t, errE)
	require.NoError(t, w.Finalize())

	errE = w.AddEntry(archive.Entry{Namespace: archive.NamespaceMetadata, Path: "x", Body: []byte("x")})
	assert.Error(t, errE)
}

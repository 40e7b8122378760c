// Package archive defines the archive output contract and a concrete
// directory-backed implementation. The scrape pipeline only ever calls
// Writer's two methods — everything about on-disk bit layout is the
// writer's concern.
package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// Namespace is one of the five reserved top-level archive namespaces.
type Namespace string

const (
	NamespaceArticle  Namespace = "A"
	NamespaceImage    Namespace = "I"
	NamespaceAsset    Namespace = "-"
	NamespaceCategory Namespace = "U"
	NamespaceMetadata Namespace = "M"
)

// Entry is one unit of archive content.
type Entry struct {
	Namespace   Namespace
	Path        string
	ContentType string
	Body        []byte
	Indexable   bool
}

// Writer is the contract the orchestrator depends on: add an entry
// (thread-safe, idempotent per (namespace, path) key), and finalize the
// archive once the run completes.
type Writer interface {
	AddEntry(entry Entry) errors.E
	Finalize() errors.E
}

// DirectoryWriter is a reference Writer that lays each namespace out as a
// subdirectory of Root, deduplicating entries by (namespace, path).
type DirectoryWriter struct {
	Root string

	mu      sync.Mutex
	written map[string]struct{}
	closed  bool
}

// NewDirectoryWriter creates root and its five namespace subdirectories.
func NewDirectoryWriter(root string) (*DirectoryWriter, errors.E) {
	for _, ns := range []Namespace{NamespaceArticle, NamespaceImage, NamespaceAsset, NamespaceCategory, NamespaceMetadata} {
		if err := os.MkdirAll(filepath.Join(root, string(ns)), 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return &DirectoryWriter{Root: root, written: map[string]struct{}{}}, nil
}

func entryKey(ns Namespace, path string) string {
	return string(ns) + "/" + path
}

// AddEntry writes entry's body under Root/<namespace>/<path>. A duplicate
// key is a no-op: the first write for a given (namespace, path) wins,
// matching the "deduplicates by (namespace, url)" contract.
func (w *DirectoryWriter) AddEntry(entry Entry) errors.E {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("archive writer already finalized")
	}

	key := entryKey(entry.Namespace, entry.Path)
	if _, ok := w.written[key]; ok {
		return nil
	}

	target := filepath.Join(w.Root, string(entry.Namespace), entry.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WithStack(err)
	}

	f, err := os.Create(target)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(entry.Body)); err != nil {
		return errors.WithStack(err)
	}

	w.written[key] = struct{}{}
	return nil
}

// Finalize marks the writer closed; no further entries may be added.
func (w *DirectoryWriter) Finalize() errors.E {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

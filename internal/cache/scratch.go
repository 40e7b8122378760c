// Package cache implements the run-local scratch cache and the client for
// the optional external Blob Cache, used to avoid re-downloading unchanged
// resources across runs.
package cache

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

const refMarkerName = ".ref"

// Scratch is the run-local cache directory holding HTTP response bodies
// keyed by the first 20 hex characters of SHA-1(url), plus a parallel ".h"
// file with the serialized response headers.
type Scratch struct {
	Dir               string
	SkipCacheCleaning bool
}

// NewScratch creates (if needed) the cache directory and drops a ref
// marker file, whose mtime is the cutoff used by Cleanup.
func NewScratch(dir string, skipCleaning bool) (*Scratch, errors.E) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, errors.WithStack(err)
	}
	ref := filepath.Join(dir, refMarkerName)
	f, err := os.Create(ref) //nolint:gosec
	if err != nil {
		return nil, errors.WithStack(err)
	}
	f.Close() //nolint:errcheck

	return &Scratch{Dir: dir, SkipCacheCleaning: skipCleaning}, nil
}

// Key returns the first 20 hex characters of SHA-1(url), the cache key
// used for both the body file and its ".h" header sidecar.
func Key(url string) string {
	sum := sha1.Sum([]byte(url)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:20]
}

func (s *Scratch) bodyPath(url string) string {
	return filepath.Join(s.Dir, Key(url))
}

func (s *Scratch) headerPath(url string) string {
	return filepath.Join(s.Dir, Key(url)+".h")
}

// Get returns the cached body and headers for url, or ok=false if absent.
func (s *Scratch) Get(url string) (body []byte, headers map[string][]string, ok bool, errE errors.E) {
	bodyBytes, err := os.ReadFile(s.bodyPath(url)) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, errors.WithStack(err)
	}

	headerBytes, err := os.ReadFile(s.headerPath(url)) //nolint:gosec
	if err != nil {
		return nil, nil, false, errors.WithStack(err)
	}
	var h map[string][]string
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, nil, false, errors.WithStack(err)
	}
	return bodyBytes, h, true, nil
}

// Put stores body and headers for url.
func (s *Scratch) Put(url string, body []byte, headers map[string][]string) errors.E {
	if err := os.WriteFile(s.bodyPath(url), body, 0o644); err != nil { //nolint:mnd,gosec
		return errors.WithStack(err)
	}
	headerBytes, err := json.Marshal(headers)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(s.headerPath(url), headerBytes, 0o644); err != nil { //nolint:mnd,gosec
		return errors.WithStack(err)
	}
	return nil
}

// Cleanup deletes every cache file older than the ref marker, unless
// SkipCacheCleaning is set.
func (s *Scratch) Cleanup() errors.E {
	if s.SkipCacheCleaning {
		return nil
	}
	ref := filepath.Join(s.Dir, refMarkerName)
	info, err := os.Stat(ref)
	if err != nil {
		return errors.WithStack(err)
	}
	cutoff := info.ModTime()

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, entry := range entries {
		if entry.Name() == refMarkerName {
			continue
		}
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}
		if entryInfo.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(s.Dir, entry.Name()))
		}
	}
	return nil
}

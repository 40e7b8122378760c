// Package kvstore is the process-local, typed key-value store that backs
// the scrape pipeline's four namespaces: articleDetail, filesToDownload,
// filesToRetry, and redirects. It supports batched concurrent iteration
// with a caller-chosen worker count, and keeps a gob-encoded snapshot on
// disk so a run can resume after a crash, following the dump/reload
// pattern used by other on-disk stores in this codebase.
package kvstore

import (
	"context"
	"encoding/gob"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tozd/go/errors"
)

// Store is a typed, concurrency-safe map keyed by string.
type Store[T any] struct {
	mu   sync.RWMutex
	data map[string]T
	path string
}

// New creates an empty store. If path is non-empty, Load will attempt to
// restore a prior snapshot from it and Dump will persist to it.
func New[T any](path string) *Store[T] {
	return &Store[T]{data: map[string]T{}, path: path}
}

// Load restores a snapshot written by Dump. A missing file is not an error:
// every store simply starts empty.
func (s *Store[T]) Load() errors.E {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	decoder := gob.NewDecoder(f)
	if err := decoder.Decode(&s.data); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Dump persists the current contents as a crash-recovery snapshot.
func (s *Store[T]) Dump() errors.E {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(s.path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	encoder := gob.NewEncoder(f)
	if err := encoder.Encode(s.data); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Set inserts or overwrites key unconditionally.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Upsert inserts value at key, or merges it with any existing value via
// merge(existing, incoming). Used by filesToDownload so that a higher
// resolution re-enqueue replaces a lower one (invariant 3).
func (s *Store[T]) Upsert(key string, incoming T, merge func(existing, incoming T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[key]; ok {
		s.data[key] = merge(existing, incoming)
		return
	}
	s.data[key] = incoming
}

// Get returns the value at key and whether it was present.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Delete removes key, if present.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Len reports the number of entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Clear removes every entry, per the orchestrator's final-phase cleanup.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]T{}
}

// Keys returns a snapshot of the current keys. Iteration workers consume
// from this snapshot rather than the live map, so that a worker inserting
// new keys mid-pass (e.g. pagination shards) does not change the set
// being iterated in this call.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Iterate dispatches every current key to workers worker goroutines,
// calling fn(ctx, key, value) for each. It returns the first error from any
// worker, after every already-started call has finished (errgroup
// semantics); the value passed to fn is a copy, consistent with "workers
// receive copies by value during batch iteration".
func (s *Store[T]) Iterate(ctx context.Context, workers int, fn func(ctx context.Context, key string, value T) error) error {
	if workers < 1 {
		workers = 1
	}
	keys := s.Keys()
	keyCh := make(chan string)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(keyCh)
		for _, k := range keys {
			select {
			case keyCh <- k:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for key := range keyCh {
				value, ok := s.Get(key)
				if !ok {
					// Deleted concurrently (e.g. superseded pagination shard).
					continue
				}
				if err := fn(gctx, key, value); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return errors.WithStack(g.Wait())
}

// Package memory implements an in-process store. It mirrors how the Gist API
// reports large files (truncated content plus a raw location) so the
// reassembly path can be exercised without a network.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/store"
)

const rawScheme = "mem://"

// Store keeps files in a map. The zero value is not usable; call New.
type Store struct {
	mu          sync.RWMutex
	files       map[string]string
	inlineLimit int
	batches     int
}

var _ store.Store = (*Store)(nil)

// New returns an empty store. Files longer than inlineLimit characters are
// listed truncated; a non-positive limit lists everything in full.
func New(inlineLimit int) *Store {
	return &Store{files: make(map[string]string), inlineLimit: inlineLimit}
}

func (s *Store) Read(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{Files: make(map[string]store.File, len(s.files))}
	for k, v := range s.files {
		f := store.File{Content: v, RawURL: rawScheme + k, Size: int64(len(v))}
		if s.inlineLimit > 0 && len(v) > s.inlineLimit {
			f.Content = v[:s.inlineLimit]
			f.Truncated = true
		}
		snap.Files[k] = f
	}
	return snap, nil
}

// Write applies the whole batch under one lock.
func (s *Store) Write(ctx context.Context, m store.Mutations) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range m {
		if v == nil {
			delete(s.files, k)
			continue
		}
		s.files[k] = *v
	}
	s.batches++
	return nil
}

func (s *Store) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, ok := strings.CutPrefix(rawURL, rawScheme)
	if !ok {
		return "", fmt.Errorf("unsupported raw location %q", rawURL)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.files[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, common.ErrNotFound)
	}
	return v, nil
}

// Batches returns how many Write calls have been applied.
func (s *Store) Batches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches
}

// Package store defines the keyed-file store that holds every post and
// fragment. The store is the system of record; the client keeps no other
// copy. Backends live in sub-packages (gist, memory, s3store, pgstore).
package store

import (
	"context"
	"sort"
)

// File is one stored file as reported by a listing. Large files may be
// delivered cut short, in which case Truncated is set and the full text is
// available from RawURL.
type File struct {
	Content   string
	Truncated bool
	RawURL    string
	Size      int64
}

// Snapshot is the full listing of a store at one point in time.
type Snapshot struct {
	Files map[string]File
}

// Keys returns the snapshot's file names in ascending order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Files))
	for k := range s.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mutations is one batched write. A nil value deletes the key.
type Mutations map[string]*string

// Put schedules key to be written with content.
func (m Mutations) Put(key, content string) {
	m[key] = &content
}

// Delete schedules key for removal.
func (m Mutations) Delete(key string) {
	m[key] = nil
}

// Store is the contract every backend satisfies.
//
// Write takes the whole batch in one call and returns a single error for it.
// The gist, memory and postgres backends apply a batch all-or-nothing. The
// s3store backend cannot: a failed Write may leave part of the batch
// applied, but it stores fragments before metadata so a reader never sees a
// post without its fragments. Implementations must be safe for concurrent
// use.
type Store interface {
	Read(ctx context.Context) (*Snapshot, error)
	Write(ctx context.Context, m Mutations) error
	FetchRaw(ctx context.Context, rawURL string) (string, error)
}

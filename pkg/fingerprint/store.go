// Package fingerprint detects new content at watched locations by comparing
// content digests against the last observation of the same location.
package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Fingerprint is a content digest used only for equality comparison.
type Fingerprint uint64

// Of computes the fingerprint of data.
func Of(data []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(data))
}

// Table maps a location to the fingerprint last observed there.
type Table map[string]Fingerprint

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Decide compares data against the fingerprint recorded for location in prev.
// It returns the fingerprint to record and whether it differs from prev.
func Decide(prev Table, location string, data []byte) (Fingerprint, bool) {
	next := Of(data)
	last, seen := prev[location]
	return next, !seen || last != next
}

// Store owns a fingerprint table for one polling loop.
type Store struct {
	fs    afero.Fs
	mu    sync.Mutex
	table Table
}

// Option configures a Store.
type Option func(*Store)

// WithTable seeds the store with a prior table.
func WithTable(t Table) Option {
	return func(s *Store) {
		s.table = t.Clone()
	}
}

// NewStore creates a Store reading locations from fs.
func NewStore(fs afero.Fs, opts ...Option) *Store {
	s := &Store{
		fs:    fs,
		table: make(Table),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe reads location and reports whether it holds new, non-empty content.
// The returned content is trimmed of surrounding whitespace. A changed digest
// is recorded before returning, so the same content is signalled at most once.
// A missing location leaves the recorded digest untouched.
func (s *Store) Observe(location string) (bool, []byte, error) {
	data, err := afero.ReadFile(s.fs, location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to read %s: %w", location, err)
	}

	s.mu.Lock()
	next, changed := Decide(s.table, location, data)
	if changed {
		s.table[location] = next
	}
	s.mu.Unlock()

	if !changed {
		return false, nil, nil
	}

	content := bytes.TrimSpace(data)
	if len(content) == 0 {
		return false, nil, nil
	}
	return true, content, nil
}

// Snapshot returns a copy of the current table.
func (s *Store) Snapshot() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}

// Package store persists records as one JSON object per kind, keyed by id.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Store holds every record of one kind in memory and rewrites the whole
// file on each mutation. All methods are safe for concurrent use.
type Store[T any] struct {
	mu      sync.RWMutex
	kind    string
	path    string
	records map[string]T
}

// Open loads <dir>/<kind>s.json, creating dir if needed. A missing file
// yields an empty store, and so does a corrupt one: the bad file is left
// in place until the next write replaces it.
func Open[T any](dir, kind string) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store[T]{
		kind:    kind,
		path:    filepath.Join(dir, kind+"s.json"),
		records: make(map[string]T),
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("corrupt store file, starting empty")
		s.records = make(map[string]T)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store[T]) Path() string { return s.path }

// Get returns the record stored under id.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", s.kind, id, ErrNotFound)
	}
	return v, nil
}

// Set stores v under id and persists the store.
func (s *Store[T]) Set(id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.records[id]
	s.records[id] = v
	if err := s.save(); err != nil {
		if had {
			s.records[id] = prev
		} else {
			delete(s.records, id)
		}
		return err
	}
	return nil
}

// Delete removes and returns the record stored under id.
func (s *Store[T]) Delete(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", s.kind, id, ErrNotFound)
	}
	delete(s.records, id)
	if err := s.save(); err != nil {
		s.records[id] = v
		return v, err
	}
	return v, nil
}

// All returns a copy of every record.
func (s *Store[T]) All() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]T, len(s.records))
	for id, v := range s.records {
		out[id] = v
	}
	return out
}

// IDs returns the stored ids in sorted order.
func (s *Store[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// save writes the records to a temp file in the same directory and renames
// it over the store file. Caller holds the write lock.
func (s *Store[T]) save() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s store: %w", s.kind, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+s.kind+"s_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// NewID returns a fresh random record id.
func NewID() string {
	return uuid.NewString()
}

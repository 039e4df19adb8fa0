// Package memory provides a mutex-guarded, in-process implementation of
// the Fedora↔OCFL Index, used for tests and as the read-only fast path's
// default.
//
// Grounded on the teacher's pkg/metadata/store/memory map-plus-mutex
// store, adapted from file-handle keys to resource-identifier keys and
// from a single committed map to a committed map plus per-session staged
// deltas.
package memory

import (
	"context"
	"sync"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

type delta struct {
	adds    map[persist.RID]persist.Mapping
	removes map[persist.RID]struct{}
}

func newDelta() *delta {
	return &delta{
		adds:    make(map[persist.RID]persist.Mapping),
		removes: make(map[persist.RID]struct{}),
	}
}

// Store is an in-memory Fedora↔OCFL Index.
type Store struct {
	mu        sync.RWMutex
	committed map[persist.RID]persist.Mapping
	sessions  map[string]*delta
}

// New creates an empty in-memory index.
func New() *Store {
	return &Store{
		committed: make(map[persist.RID]persist.Mapping),
		sessions:  make(map[string]*delta),
	}
}

func (s *Store) sessionDelta(sessionID string) *delta {
	if sessionID == "" {
		return nil
	}
	d, ok := s.sessions[sessionID]
	if !ok {
		d = newDelta()
		s.sessions[sessionID] = d
	}
	return d
}

// Get implements index.Index.
func (s *Store) Get(_ context.Context, sessionID string, rid persist.RID) (persist.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sessionID != "" {
		if d, ok := s.sessions[sessionID]; ok {
			if _, removed := d.removes[rid]; removed {
				return persist.Mapping{}, persist.NewNotFoundError(string(rid), "no FOI mapping")
			}
			if m, ok := d.adds[rid]; ok {
				return m, nil
			}
		}
	}

	m, ok := s.committed[rid]
	if !ok {
		return persist.Mapping{}, persist.NewNotFoundError(string(rid), "no FOI mapping")
	}
	return m, nil
}

// Add implements index.Index.
func (s *Store) Add(_ context.Context, sessionID string, rid persist.RID, ocflID string, rootRID persist.RID) error {
	if sessionID == "" {
		return persist.NewInvalidArgumentError("Add requires a non-empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.sessionDelta(sessionID)
	delete(d.removes, rid)
	d.adds[rid] = persist.Mapping{RID: rid, OCFLID: ocflID, RootRID: rootRID, IsAGRoot: rid == rootRID}
	return nil
}

// Remove implements index.Index.
func (s *Store) Remove(_ context.Context, sessionID string, rid persist.RID) error {
	if sessionID == "" {
		return persist.NewInvalidArgumentError("Remove requires a non-empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.sessionDelta(sessionID)
	delete(d.adds, rid)
	d.removes[rid] = struct{}{}
	return nil
}

// Commit implements index.Index.
func (s *Store) Commit(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	for rid := range d.removes {
		delete(s.committed, rid)
	}
	for rid, m := range d.adds {
		s.committed[rid] = m
	}
	delete(s.sessions, sessionID)
	return nil
}

// Rollback implements index.Index.
func (s *Store) Rollback(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Healthcheck implements index.Index.
func (s *Store) Healthcheck(_ context.Context) error {
	return nil
}

// Close implements index.Index.
func (s *Store) Close() error {
	return nil
}

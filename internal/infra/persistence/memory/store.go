// Package memory provides an in-memory event store used by tests and
// ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghostwatch/pkg/domain"
)

var _ domain.EventStore = (*Store)(nil)

// Store keeps every appended event in a map keyed by its natural identity.
type Store struct {
	mu      sync.RWMutex
	events  map[domain.EventKey]domain.ChangeEvent
	appends int
	closed  bool
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{events: make(map[domain.EventKey]domain.ChangeEvent)}
}

// Append records the events of set. Events already present are ignored.
func (s *Store) Append(_ context.Context, set domain.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("append: store closed")
	}
	for _, e := range set.Events {
		if !e.Kind.Valid() {
			return fmt.Errorf("append: unknown event kind %q", e.Kind)
		}
	}
	for _, e := range set.Events {
		key := e.Key()
		if _, ok := s.events[key]; ok {
			continue
		}
		s.events[key] = e
	}
	s.appends++
	return nil
}

// Latest returns the newest limit events of each kind.
func (s *Store) Latest(_ context.Context, limit int) (domain.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.View{}, fmt.Errorf("latest: store closed")
	}
	if limit <= 0 {
		limit = domain.DefaultViewLimit
	}
	all := make([]domain.ChangeEvent, 0, len(s.events))
	var newest time.Time
	for _, e := range s.events {
		all = append(all, e)
		if e.At.After(newest) {
			newest = e.At
		}
	}
	return domain.ViewFromEvents(all, limit, newest), nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Appends returns how many Append calls succeeded.
func (s *Store) Appends() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appends
}

// Close marks the store closed; later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

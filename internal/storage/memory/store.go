// Package memory provides an in-memory event store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Store is an in-memory implementation of ports.EventStore
type Store struct {
	mu     sync.RWMutex
	events []*ports.StoredEvent
	ids    map[string]struct{}
}

var _ ports.EventStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		ids: make(map[string]struct{}),
	}
}

func (s *Store) AppendEvent(ctx context.Context, event *ports.StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[event.ID]; exists {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	stored := *event
	s.events = append(s.events, &stored)
	s.ids[event.ID] = struct{}{}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts ports.ListOptions) ([]*ports.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ports.StoredEvent
	for _, e := range s.events {
		if opts.SessionID != "" && e.SessionID != opts.SessionID {
			continue
		}
		if opts.ViewID != "" && e.ViewID != opts.ViewID {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		result = append(result, e)
	}

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*ports.StoredEvent{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Close() error {
	return nil
}

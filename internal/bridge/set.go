package bridge

import (
	"context"

	"github.com/vk/eventhost/internal/registry"
)

// Set holds the configured bridges by name.
type Set struct {
	order  []*Bridge
	byName map[string]*Bridge
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Bridge)}
}

// Add puts b into the set, replacing any bridge with the same name.
func (s *Set) Add(b *Bridge) {
	if _, ok := s.byName[b.Name()]; !ok {
		s.order = append(s.order, b)
	} else {
		for i, old := range s.order {
			if old.Name() == b.Name() {
				s.order[i] = b
			}
		}
	}
	s.byName[b.Name()] = b
}

// Get returns the bridge called name.
func (s *Set) Get(name string) (*Bridge, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// Emitter adapts Get to the lookup the registry hands to modules.
func (s *Set) Emitter(name string) (registry.Emitter, bool) {
	b, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return b, true
}

// Len reports how many bridges are configured.
func (s *Set) Len() int { return len(s.order) }

// ConnectAll connects every bridge in the order they were added, closing
// the ones already connected if any fails.
func (s *Set) ConnectAll(ctx context.Context) error {
	for i, b := range s.order {
		if err := b.Connect(ctx); err != nil {
			for _, done := range s.order[:i] {
				done.Close()
			}
			return err
		}
	}
	return nil
}

// Close disconnects every bridge.
func (s *Set) Close() {
	for _, b := range s.order {
		b.Close()
	}
}

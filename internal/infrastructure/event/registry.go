package event

import (
	"slices"
	"sync"

	"github.com/bau/backend/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	// nil matches every event type
	types map[string]struct{}
}

func (s subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Subscriptions is the bus routing table. Matching handlers are returned in
// the order they subscribed.
type Subscriptions struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewSubscriptions creates an empty routing table
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{}
}

// Add routes eventTypes to handler; no types routes every event
func (s *Subscriptions) Add(handler shared.EventHandler, eventTypes ...string) {
	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Remove drops every subscription of handler
func (s *Subscriptions) Remove(handler shared.EventHandler) {
	s.mu.Lock()
	s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.handler == handler })
	s.mu.Unlock()
}

// Match returns the handlers subscribed to eventType
func (s *Subscriptions) Match(eventType string) []shared.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shared.EventHandler
	for _, sub := range s.subs {
		if sub.matches(eventType) {
			out = append(out, sub.handler)
		}
	}
	return out
}

// Package urlsync keeps the catalog's filter/sort/page state and the
// navigable URL in step without the two directions feeding back into each
// other. Updates triggered by the application set a guard flag for their
// duration so the resulting URL-change notification is not mistaken for an
// external navigation (for example back/forward).
package urlsync

import (
	"net/url"
	"sync"
)

// Navigator applies a merged query string to the address bar (or whatever
// stands in for it). Navigate may fail; the guard is released either way.
type Navigator interface {
	Navigate(params url.Values) error
}

// Handler receives the resolved query parameters of an external URL change.
type Handler func(params url.Values)

// Merge applies params onto a copy of base. A nil value removes the key,
// never the literal string "null"; non-nil values replace it.
func Merge(base url.Values, params map[string]*string) url.Values {
	merged := url.Values{}
	for key, vals := range base {
		merged[key] = append([]string(nil), vals...)
	}
	for key, val := range params {
		if val == nil {
			merged.Del(key)
			continue
		}
		merged.Set(key, *val)
	}
	return merged
}

// Sync binds query state to a navigator.
type Sync struct {
	mu         sync.Mutex
	navigator  Navigator
	current    url.Values
	handlers   []Handler
	guard      bool
	generation int
}

// New creates a synchronizer starting from the given query state.
func New(navigator Navigator, initial url.Values) *Sync {
	if initial == nil {
		initial = url.Values{}
	}
	return &Sync{navigator: navigator, current: initial}
}

// Current returns a copy of the query state as last synchronized.
func (s *Sync) Current() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Merge(s.current, nil)
}

// Update merges params into the current query string and navigates. While
// the navigation is in flight, incoming change notifications are ignored.
// Rapid updates are coalesced: only the most recent update's completion
// clears the guard, so an older navigation settling late cannot re-open the
// window early.
func (s *Sync) Update(params map[string]*string) error {
	s.mu.Lock()
	s.current = Merge(s.current, params)
	merged := Merge(s.current, nil)
	s.guard = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	err := s.navigator.Navigate(merged)

	s.mu.Lock()
	if gen == s.generation {
		s.guard = false
	}
	s.mu.Unlock()
	return err
}

// Subscribe registers a handler for external URL changes. Handlers are not
// invoked for changes caused by Update.
func (s *Sync) Subscribe(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Notify delivers an URL change observed outside this synchronizer. It is
// suppressed while one of our own updates is in flight.
func (s *Sync) Notify(params url.Values) {
	s.mu.Lock()
	if s.guard {
		s.mu.Unlock()
		return
	}
	s.current = Merge(params, nil)
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(params)
	}
}

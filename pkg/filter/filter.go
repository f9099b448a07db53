// Package filter holds the live filter state (search text and category) and
// the client-side search matching applied to each loaded page.
package filter

import (
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// Snapshot is a copy of the filter state.
type Snapshot struct {
	Search     string
	Category   string
	Generation uint64
}

// Query returns the normalized search text.
func (s Snapshot) Query() string {
	return Normalize(s.Search)
}

// State is the filter state. Every effective change bumps the generation,
// which lets a load detect that its results belong to an older filter.
type State struct {
	mu         sync.RWMutex
	search     string
	category   string
	generation uint64
}

// SetSearch stores the raw search text. It reports whether the normalized
// query changed; only then is the generation bumped.
func (s *State) SetSearch(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := Normalize(text) != Normalize(s.search)
	s.search = text
	if changed {
		s.generation++
	}
	return changed
}

// SetCategory stores the category ("" for all). It reports whether the value
// changed.
func (s *State) SetCategory(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == s.category {
		return false
	}
	s.category = name
	s.generation++
	return true
}

// Bump advances the generation without changing the filter, invalidating
// any load in flight.
func (s *State) Bump() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Generation returns the current generation.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Search:     s.search,
		Category:   s.category,
		Generation: s.generation,
	}
}

// Normalize trims and lower-cases a search text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Matches reports whether item satisfies an already normalized query. An
// empty query matches everything. A numeric query matches the exact id or a
// name containing the digits; any other query matches a name substring.
func Matches(query string, item *catalog.Item) bool {
	if item == nil {
		return false
	}
	if query == "" {
		return true
	}
	if isDigits(query) {
		if id, err := strconv.Atoi(query); err == nil && id == item.ID {
			return true
		}
	}
	return strings.Contains(strings.ToLower(item.Name), query)
}

// Apply returns the items matching query, in their original order. The input
// slice is not modified.
func Apply(query string, items []*catalog.Item) []*catalog.Item {
	out := make([]*catalog.Item, 0, len(items))
	for _, item := range items {
		if Matches(query, item) {
			out = append(out, item)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Entity names a searchable row set.
type Entity string

const (
	EntityUsers Entity = "users"
	EntityPosts Entity = "posts"
)

// Valid reports whether e is a known entity.
func (e Entity) Valid() bool {
	return e == EntityUsers || e == EntityPosts
}

// ErrUnknownEntity is returned when a source has no rows registered for an entity.
var ErrUnknownEntity = errors.New("unknown search entity")

// Window is the validated slice of a ranked result set a source must return.
type Window struct {
	Query  string
	Facet  string
	Limit  int
	Offset int
}

// valid reports whether the window can be sliced out of a result set.
func (w Window) valid() bool {
	return w.Limit >= 0 && w.Offset >= 0
}

// Source ranks candidates of one entity and returns the requested window,
// already ordered.
type Source interface {
	Rank(ctx context.Context, entity Entity, w Window) ([]Scored, error)
}

// CandidateLister provides the full candidate set of one entity.
type CandidateLister interface {
	SearchCandidates(ctx context.Context) ([]Candidate, error)
}

// InMemorySource ranks candidates in process.
type InMemorySource struct {
	mu      sync.RWMutex
	listers map[Entity]CandidateLister
}

// NewInMemorySource creates a source with no entities registered.
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{listers: make(map[Entity]CandidateLister)}
}

// Register sets the candidate lister backing entity.
func (s *InMemorySource) Register(entity Entity, l CandidateLister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listers[entity] = l
}

// Rank scores every candidate, drops those failing admission or the facet,
// sorts, and slices the window.
func (s *InMemorySource) Rank(ctx context.Context, entity Entity, w Window) ([]Scored, error) {
	if !w.valid() {
		return nil, fmt.Errorf("%w: window offset %d limit %d", ErrInvalidInput, w.Offset, w.Limit)
	}
	s.mu.RLock()
	l, ok := s.listers[entity]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	candidates, err := l.SearchCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s candidates: %w", entity, err)
	}

	sc := newScorer(w.Query)
	ranked := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if w.Facet != "" && c.Facet != w.Facet {
			continue
		}
		scored := sc.score(c)
		if !scored.admitted {
			continue
		}
		ranked = append(ranked, scored)
	}
	slices.SortFunc(ranked, Compare)

	if w.Offset >= len(ranked) {
		return []Scored{}, nil
	}
	end := len(ranked)
	if w.Limit < end-w.Offset {
		end = w.Offset + w.Limit
	}
	return ranked[w.Offset:end], nil
}

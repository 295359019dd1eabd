package recency

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type subjectKey struct {
	list    List
	subject string
}

// InMemoryStore keeps lists in process memory.
// Thread-safe for concurrent access.
type InMemoryStore struct {
	mu      sync.Mutex
	seq     int64
	entries map[subjectKey][]Entry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[subjectKey][]Entry)}
}

// Record implements Store. The store-wide mutex makes every call atomic.
func (s *InMemoryStore) Record(ctx context.Context, list List, subjectID, targetID string, at time.Time, capacity int) (Result, error) {
	if !list.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	key := subjectKey{list: list, subject: subjectID}
	entries := s.entries[key]

	res := Result{Outcome: Created}
	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.TargetID == targetID })
	if idx >= 0 {
		entries[idx].LastInteractionAt = at
		entries[idx].Seq = s.seq
		res.Outcome = Refreshed
	} else {
		entries = append(entries, Entry{
			SubjectID:         subjectID,
			TargetID:          targetID,
			LastInteractionAt: at,
			Seq:               s.seq,
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		switch {
		case newer(a, b):
			return -1
		case newer(b, a):
			return 1
		default:
			return 0
		}
	})
	if len(entries) > capacity {
		res.Evicted = len(entries) - capacity
		entries = entries[:capacity]
	}
	s.entries[key] = entries
	return res, nil
}

// ListRecent implements Store.
func (s *InMemoryStore) ListRecent(ctx context.Context, list List, subjectID string) ([]Entry, error) {
	if !list.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.entries[subjectKey{list: list, subject: subjectID}]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

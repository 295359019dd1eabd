// Package stats provides cumulative counters for recently-viewed list maintenance.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// InteractionStats tracks how recorded interactions changed a list.
// All operations are thread-safe using atomic counters.
type InteractionStats struct {
	created   atomic.Int64
	refreshed atomic.Int64
	evicted   atomic.Int64
}

// NewInteractionStats creates a new InteractionStats instance.
func NewInteractionStats() *InteractionStats {
	return &InteractionStats{}
}

// RecordCreated counts an interaction that inserted a new entry.
func (s *InteractionStats) RecordCreated() {
	s.created.Add(1)
}

// RecordRefreshed counts an interaction that refreshed an existing entry.
func (s *InteractionStats) RecordRefreshed() {
	s.refreshed.Add(1)
}

// RecordEvicted counts entries removed by the capacity policy.
func (s *InteractionStats) RecordEvicted(n int) {
	if n > 0 {
		s.evicted.Add(int64(n))
	}
}

func (s *InteractionStats) Created() int64   { return s.created.Load() }
func (s *InteractionStats) Refreshed() int64 { return s.refreshed.Load() }
func (s *InteractionStats) Evicted() int64   { return s.evicted.Load() }

// Total returns the number of recorded interactions.
func (s *InteractionStats) Total() int64 {
	return s.Created() + s.Refreshed()
}

// Reset zeroes all counters.
func (s *InteractionStats) Reset() {
	s.created.Store(0)
	s.refreshed.Store(0)
	s.evicted.Store(0)
}

func (s *InteractionStats) String() string {
	return fmt.Sprintf("created=%d refreshed=%d evicted=%d total=%d",
		s.Created(), s.Refreshed(), s.Evicted(), s.Total())
}

// LogSummary logs the counters at INFO level, typically at shutdown.
func (s *InteractionStats) LogSummary(logger *slog.Logger, list string) {
	logger.Info("recency statistics",
		"list", list,
		"created", s.Created(),
		"refreshed", s.Refreshed(),
		"evicted", s.Evicted(),
		"total", s.Total(),
	)
}

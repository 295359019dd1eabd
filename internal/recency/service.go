package recency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/carmarket/internal/stats"
)

// Service validates calls and applies the capacity policy through a Store.
type Service struct {
	store    Store
	capacity int
	now      func() time.Time
	metrics  *Metrics
	stats    map[List]*stats.InteractionStats
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.capacity = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		capacity: DefaultCapacity,
		now:      func() time.Time { return time.Now().UTC() },
		stats: map[List]*stats.InteractionStats{
			ViewedPosts: stats.NewInteractionStats(),
			ViewedUsers: stats.NewInteractionStats(),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the per-subject entry limit.
func (s *Service) Capacity() int {
	return s.capacity
}

// RecordInteraction records that subjectID interacted with targetID on list.
func (s *Service) RecordInteraction(ctx context.Context, list List, subjectID, targetID string) (Result, error) {
	subjectID = strings.TrimSpace(subjectID)
	targetID = strings.TrimSpace(targetID)
	if !list.Valid() {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, ErrUnknownList)
	}
	if subjectID == "" || targetID == "" {
		return Result{}, fmt.Errorf("%w: subject and target ids are required", ErrInvalidInput)
	}

	res, err := s.store.Record(ctx, list, subjectID, targetID, s.now(), s.capacity)
	if err != nil {
		s.metrics.incError(list, "record")
		return Result{}, fmt.Errorf("record %s interaction: %w", list, err)
	}

	s.metrics.observeRecord(list, res)
	st := s.stats[list]
	if res.Outcome == Created {
		st.RecordCreated()
	} else {
		st.RecordRefreshed()
	}
	st.RecordEvicted(res.Evicted)

	s.logger.DebugContext(ctx, "interaction recorded",
		slog.String("list", string(list)),
		slog.String("subject_id", subjectID),
		slog.String("target_id", targetID),
		slog.String("outcome", res.Outcome.String()),
		slog.Int("evicted", res.Evicted),
	)
	return res, nil
}

// ListRecent returns subjectID's entries on list, most recent first.
func (s *Service) ListRecent(ctx context.Context, list List, subjectID string) ([]Entry, error) {
	subjectID = strings.TrimSpace(subjectID)
	if !list.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrUnknownList)
	}
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}

	entries, err := s.store.ListRecent(ctx, list, subjectID)
	if err != nil {
		s.metrics.incError(list, "list")
		return nil, fmt.Errorf("list %s: %w", list, err)
	}
	return entries, nil
}

// Stats returns the cumulative counters for list.
func (s *Service) Stats(list List) *stats.InteractionStats {
	return s.stats[list]
}

// LogSummary logs the cumulative counters of every list.
func (s *Service) LogSummary() {
	for _, l := range []List{ViewedPosts, ViewedUsers} {
		s.stats[l].LogSummary(s.logger, string(l))
	}
}

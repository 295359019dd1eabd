package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/tracing"
)

// Page sizes fixed per listing.
const (
	PostPageSize  = 12
	UserPageSize  = 15
	TypeaheadSize = 6
)

// ErrInvalidInput is returned for requests rejected before the source is queried.
var ErrInvalidInput = errors.New("invalid search input")

// Request is a search call as received from a handler.
type Request struct {
	Query string
	Facet string
	Page  int
	Limit int
}

// Page is one slice of ranked results.
type Page struct {
	Items    []Scored `json:"items"`
	NextPage *int     `json:"nextPage"`
}

// Service validates requests, queries a Source and assembles pages.
type Service struct {
	source  Source
	metrics *Metrics
	logger  *slog.Logger
}

// NewService creates a search service. metrics may be nil.
func NewService(source Source, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, metrics: metrics, logger: logger}
}

// Search returns the requested page of entity rows ranked against req.Query.
func (s *Service) Search(ctx context.Context, entity Entity, req Request) (*Page, error) {
	start := time.Now()

	if !entity.Valid() {
		s.metrics.ObserveSearch(entity, OutcomeInvalid, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrUnknownEntity)
	}
	if err := paging.Validate(req.Page, req.Limit); err != nil {
		s.metrics.ObserveSearch(entity, OutcomeInvalid, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !utf8.ValidString(req.Query) || !utf8.ValidString(req.Facet) {
		s.metrics.ObserveSearch(entity, OutcomeInvalid, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: search term and facet must be valid UTF-8", ErrInvalidInput)
	}

	ctx, endSpan := tracing.StartSpan(ctx, "search."+string(entity))
	tracing.SetAttributes(ctx,
		attribute.String("search.entity", string(entity)),
		attribute.Int("search.page", req.Page),
		attribute.Int("search.limit", req.Limit),
		attribute.Bool("search.faceted", req.Facet != ""),
	)

	items, err := s.source.Rank(ctx, entity, Window{
		Query:  req.Query,
		Facet:  req.Facet,
		Limit:  req.Limit,
		Offset: paging.Offset(req.Page, req.Limit),
	})
	endSpan(err)
	if err != nil {
		s.metrics.ObserveSearch(entity, OutcomeError, 0, time.Since(start).Seconds())
		s.logger.ErrorContext(ctx, "search failed",
			slog.String("entity", string(entity)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("search %s: %w", entity, err)
	}
	if items == nil {
		items = []Scored{}
	}

	outcome := OutcomeOK
	if len(items) == 0 {
		outcome = OutcomeEmpty
	}
	s.metrics.ObserveSearch(entity, outcome, len(items), time.Since(start).Seconds())
	s.logger.DebugContext(ctx, "search completed",
		slog.String("entity", string(entity)),
		slog.Int("page", req.Page),
		slog.Int("results", len(items)),
	)

	return &Page{
		Items:    items,
		NextPage: paging.Next(req.Page, req.Limit, len(items)),
	}, nil
}

// IDs returns the ids of the page's items in rank order.
func (p *Page) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ID
	}
	return ids
}

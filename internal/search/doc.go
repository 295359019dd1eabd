// Package search implements ranked fuzzy search over users and car listings.
//
// A row is admitted when any of three signals fires against the query:
// trigram similarity above SimilarityThreshold, a full-text match under the
// "simple" configuration, or a case-insensitive substring match. Admitted rows
// are then ordered bucket first and score second:
//
//  1. prefix rank (1 prefix, 2 full-text, 3 similarity, 4 substring only)
//  2. similarity, descending
//  3. full-text rank, descending
//  4. normalized text, ascending
//  5. creation time, descending
//  6. id, ascending
//
// The bucket is never folded into a blended score; exact prefix hits always
// lead regardless of how the other signals compare.
//
// Basic Usage:
//
//	svc := search.NewService(search.NewPostgresSource(db, logger), metrics, logger)
//	page, err := svc.Search(ctx, search.EntityUsers, search.Request{
//		Query: "toy",
//		Facet: "Erbil",
//		Page:  1,
//		Limit: search.UserPageSize,
//	})
//
// Two sources are provided. PostgresSource pushes the whole computation into
// one SQL statement backed by pg_trgm and unaccent. InMemorySource computes the
// same signals in Go and is used by the in-memory storage backend and tests.
package search

package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
)

// descriptor maps an entity onto fixed SQL fragments. Values here are
// compile-time constants; caller input only ever reaches the query as bind
// parameters.
type descriptor struct {
	table   string
	from    string
	id      string
	text    string
	facet   string
	created string
}

var descriptors = map[Entity]descriptor{
	EntityUsers: {
		table:   "users",
		from:    "users u",
		id:      "u.user_id",
		text:    "u.username",
		facet:   "u.city",
		created: "u.created_at",
	},
	EntityPosts: {
		table:   "posts",
		from:    "posts p JOIN users u ON u.user_id = p.user_id",
		id:      "p.id::text",
		text:    "p.car_name",
		facet:   "u.city",
		created: "p.created_at",
	},
}

// rankQuery builds the ranking statement for d.
//
// Parameters: $1 query, $2 query with LIKE metacharacters escaped,
// $3 facet ('' for none), $4 limit, $5 offset.
func rankQuery(d descriptor) string {
	threshold := strconv.FormatFloat(SimilarityThreshold, 'f', -1, 64)
	return fmt.Sprintf(`
		WITH q AS (
			SELECT unaccent($1::text) AS norm,
			       plainto_tsquery('simple', unaccent($1::text)) AS tsq,
			       $2::text AS pattern
		)
		SELECT c.id, c.text, c.facet, c.created_at,
		       CASE
		           WHEN c.is_prefix THEN 1
		           WHEN c.is_fts THEN 2
		           WHEN c.sim > %[6]s THEN 3
		           ELSE 4
		       END AS prefix_rank,
		       c.sim, c.rank
		FROM (
			SELECT %[2]s AS id,
			       %[3]s AS text,
			       COALESCE(%[4]s, '') AS facet,
			       %[5]s AS created_at,
			       similarity(unaccent(%[3]s), q.norm)::float8 AS sim,
			       ts_rank_cd(setweight(to_tsvector('simple', unaccent(%[3]s)), 'A'), q.tsq)::float8 AS rank,
			       to_tsvector('simple', unaccent(%[3]s)) @@ q.tsq AS is_fts,
			       %[3]s ILIKE q.pattern || '%%' ESCAPE '\' AS is_prefix,
			       %[3]s ILIKE '%%' || q.pattern || '%%' ESCAPE '\' AS is_substring
			FROM %[1]s, q
			WHERE ($3::text = '' OR %[4]s = $3::text)
		) c
		WHERE c.sim > %[6]s OR c.is_fts OR c.is_substring
		ORDER BY prefix_rank ASC,
		         c.sim DESC,
		         c.rank DESC,
		         lower(unaccent(c.text)) COLLATE "C" ASC,
		         c.created_at DESC,
		         c.id ASC
		LIMIT $4 OFFSET $5`,
		d.from, d.id, d.text, d.facet, d.created, threshold)
}

// PostgresSource ranks rows inside Postgres. It requires the pg_trgm and
// unaccent extensions.
type PostgresSource struct {
	db      *sql.DB
	logger  *slog.Logger
	queries map[Entity]string
}

// NewPostgresSource creates a source over db.
func NewPostgresSource(db *sql.DB, logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.Default()
	}
	queries := make(map[Entity]string, len(descriptors))
	for e, d := range descriptors {
		queries[e] = rankQuery(d)
	}
	return &PostgresSource{db: db, logger: logger, queries: queries}
}

// Rank runs the ranking statement for entity and scans the window.
func (s *PostgresSource) Rank(ctx context.Context, entity Entity, w Window) (result []Scored, err error) {
	query, ok := s.queries[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	if !w.valid() {
		return nil, fmt.Errorf("%w: window offset %d limit %d", ErrInvalidInput, w.Offset, w.Limit)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, descriptors[entity].table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, query, w.Query, db.EscapeLike(w.Query), w.Facet, w.Limit, w.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to rank %s: %w", entity, err)
	}
	defer rows.Close()

	result = make([]Scored, 0, w.Limit)
	for rows.Next() {
		var sc Scored
		if err := rows.Scan(
			&sc.ID,
			&sc.Text,
			&sc.Facet,
			&sc.CreatedAt,
			&sc.PrefixRank,
			&sc.Similarity,
			&sc.TextRank,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ranked %s row: %w", entity, err)
		}
		sc.admitted = true
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranked %s rows: %w", entity, err)
	}
	return result, nil
}

package recency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
)

// listTable maps a list onto its table and target column.
type listTable struct {
	table  string
	target string
}

var listTables = map[List]listTable{
	ViewedPosts: {table: "viewed_posts", target: "post_id"},
	ViewedUsers: {table: "viewed_users", target: "viewed_user_id"},
}

type listQueries struct {
	table  string
	upsert string
	evict  string
	recent string
}

func buildQueries(t listTable) listQueries {
	return listQueries{
		table: t.table,
		upsert: fmt.Sprintf(`
			INSERT INTO %[1]s (user_id, %[2]s, viewed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, %[2]s)
			DO UPDATE SET viewed_at = EXCLUDED.viewed_at, seq = nextval('recency_seq')
			RETURNING (xmax = 0) AS inserted`, t.table, t.target),
		evict: fmt.Sprintf(`
			DELETE FROM %[1]s
			WHERE user_id = $1
			  AND %[2]s IN (
				SELECT %[2]s FROM %[1]s
				WHERE user_id = $1
				ORDER BY viewed_at DESC, seq DESC
				OFFSET $2
			  )`, t.table, t.target),
		recent: fmt.Sprintf(`
			SELECT user_id, %[2]s::text, viewed_at, seq
			FROM %[1]s
			WHERE user_id = $1
			ORDER BY viewed_at DESC, seq DESC`, t.table, t.target),
	}
}

// PostgresStore persists recency lists in Postgres.
type PostgresStore struct {
	db      *sql.DB
	logger  *slog.Logger
	queries map[List]listQueries
}

// NewPostgresStore creates a store over db. If logger is nil, slog.Default() is used.
func NewPostgresStore(conn *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	queries := make(map[List]listQueries, len(listTables))
	for l, t := range listTables {
		queries[l] = buildQueries(t)
	}
	return &PostgresStore{db: conn, logger: logger, queries: queries}
}

// Record implements Store.
//
// A transaction-scoped advisory lock keyed on (list, subject) serializes
// calls for the same subject, so the upsert and the eviction that follows
// always observe each other's effects. Calls for different subjects take
// different locks and never wait on each other.
func (s *PostgresStore) Record(ctx context.Context, list List, subjectID, targetID string, at time.Time, capacity int) (res Result, err error) {
	q, ok := s.queries[list]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, q.table, tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return Result{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("failed to rollback recency transaction",
				slog.String("list", string(list)),
				slog.String("error", rbErr.Error()))
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(list)+":"+subjectID); err != nil {
		return Result{}, fmt.Errorf("failed to lock subject: %w", err)
	}

	var inserted bool
	if err = tx.QueryRowContext(ctx, q.upsert, subjectID, targetID, at).Scan(&inserted); err != nil {
		switch {
		case db.IsCode(err, db.CodeForeignKeyViolation):
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
		case db.IsCode(err, db.CodeInvalidTextRep):
			return Result{}, fmt.Errorf("%w: malformed target id", ErrInvalidInput)
		}
		return Result{}, fmt.Errorf("failed to upsert %s entry: %w", list, err)
	}

	evicted, err := tx.ExecContext(ctx, q.evict, subjectID, capacity)
	if err != nil {
		return Result{}, fmt.Errorf("failed to evict %s entries: %w", list, err)
	}
	n, err := evicted.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("failed to count evicted %s entries: %w", list, err)
	}

	if err = tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	res = Result{Outcome: Refreshed, Evicted: int(n)}
	if inserted {
		res.Outcome = Created
	}
	return res, nil
}

// ListRecent implements Store.
func (s *PostgresStore) ListRecent(ctx context.Context, list List, subjectID string) (entries []Entry, err error) {
	q, ok := s.queries[list]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, q.table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, q.recent, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", list, err)
	}
	defer rows.Close()

	entries = []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SubjectID, &e.TargetID, &e.LastInteractionAt, &e.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan %s entry: %w", list, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s entries: %w", list, err)
	}
	return entries, nil
}

package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
)

func imagesArg(images []string) any {
	if images == nil {
		images = []string{}
	}
	return pq.Array(images)
}

const postColumns = `
	p.id::text, p.user_id, p.car_name, p.price,
	COALESCE(p.model, ''), COALESCE(p.transmission, ''), COALESCE(p.fuel_type, ''),
	COALESCE(p.color, ''), COALESCE(p.information, ''), COALESCE(p.conditions, ''),
	COALESCE(p.engine, ''), COALESCE(p.side, ''), p.popular, p.images,
	p.created_at, p.updated_at`

// feedColumns expects the viewer id bound as $1.
const feedColumns = postColumns + `,
	u.username, COALESCE(u.profile, ''), COALESCE(u.city, ''),
	(SELECT COUNT(*)::int FROM likes l WHERE l.post_id = p.id),
	EXISTS (SELECT 1 FROM likes l WHERE l.user_id = $1 AND l.post_id = p.id),
	EXISTS (SELECT 1 FROM saves s WHERE s.user_id = $1 AND s.post_id = p.id)`

const feedFrom = `
	FROM posts p
	JOIN users u ON u.user_id = p.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func postDest(p *Post) []any {
	return []any{
		&p.ID, &p.UserID, &p.CarName, &p.Price,
		&p.Model, &p.Transmission, &p.FuelType,
		&p.Color, &p.Information, &p.Conditions,
		&p.Engine, &p.Side, &p.Popular, pq.Array(&p.Images),
		&p.CreatedAt, &p.UpdatedAt,
	}
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	if err := row.Scan(postDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanFeedItem(row rowScanner) (*FeedItem, error) {
	var it FeedItem
	dest := append(postDest(&it.Post),
		&it.Username, &it.Profile, &it.City,
		&it.LikesCount, &it.Liked, &it.Saved,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if it.Images == nil {
		it.Images = []string{}
	}
	return &it, nil
}

// validID reports whether id can be compared against a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// PostgresPostRepository is a Repository over the posts, likes and saves tables.
type PostgresPostRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPostRepository creates a repository over conn. If logger is
// nil, slog.Default() is used.
func NewPostgresPostRepository(conn *sql.DB, logger *slog.Logger) *PostgresPostRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPostRepository{db: conn, logger: logger}
}

func (r *PostgresPostRepository) Create(ctx context.Context, p *Post) (err error) {
	if err := p.Validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	p.ID = uuid.New().String()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO posts (
			id, user_id, car_name, price, model, transmission, fuel_type, color,
			information, conditions, engine, side, popular, images, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.CarName, p.Price, p.Model, p.Transmission, p.FuelType, p.Color,
		p.Information, p.Conditions, p.Engine, p.Side, p.Popular, imagesArg(p.Images), p.CreatedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsCode(err, db.CodeForeignKeyViolation) {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, p.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *PostgresPostRepository) Get(ctx context.Context, id, viewer string) (item *FeedItem, err error) {
	if !validID(id) {
		return nil, ErrPostNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	item, err = scanFeedItem(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+feedFrom+` WHERE p.id = $2`, viewer, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return item, nil
}

func (r *PostgresPostRepository) Update(ctx context.Context, id string, patch Patch) (p *Post, err error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrPostNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	clause, args := db.SetClause(patch.normalized().assignments(), 2)
	query := `UPDATE posts p SET ` + clause + `, updated_at = NOW() WHERE p.id = $1 RETURNING ` + postColumns
	p, err = scanPost(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return p, nil
}

func (r *PostgresPostRepository) Delete(ctx context.Context, id string) (err error) {
	if !validID(id) {
		return ErrPostNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *PostgresPostRepository) queryFeed(ctx context.Context, query string, args ...any) (items []*FeedItem, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	items = []*FeedItem{}
	for rows.Next() {
		it, err := scanFeedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return items, nil
}

func (r *PostgresPostRepository) ListFeed(ctx context.Context, viewer string, limit, offset int) ([]*FeedItem, error) {
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $2 OFFSET $3`, viewer, limit, offset)
}

func (r *PostgresPostRepository) ListPopular(ctx context.Context, viewer string) ([]*FeedItem, error) {
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		WHERE p.popular
		ORDER BY p.created_at DESC, p.id ASC`, viewer)
}

func (r *PostgresPostRepository) ListByUser(ctx context.Context, owner, viewer string, limit, offset int) ([]*FeedItem, error) {
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		WHERE p.user_id = $2
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $3 OFFSET $4`, viewer, owner, limit, offset)
}

func (r *PostgresPostRepository) ListSaved(ctx context.Context, userID string, limit, offset int) ([]*FeedItem, error) {
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		JOIN saves sv ON sv.post_id = p.id AND sv.user_id = $1
		ORDER BY sv.created_at DESC, p.id ASC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *PostgresPostRepository) GetMany(ctx context.Context, ids []string, viewer string) ([]*FeedItem, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*FeedItem{}, nil
	}
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		JOIN unnest($2::uuid[]) WITH ORDINALITY AS ids(id, ord) ON ids.id = p.id
		ORDER BY ids.ord`, viewer, pq.Array(valid))
}

// filterClause renders f as AND-ed predicates with placeholders numbered
// from first. Column names are fixed here; values are always bound.
func filterClause(f Filter, first int) (string, []any) {
	var preds []string
	var args []any
	add := func(pred string, v any) {
		args = append(args, v)
		preds = append(preds, strings.ReplaceAll(pred, "$?", "$"+strconv.Itoa(first+len(args)-1)))
	}
	if f.CarName != "" {
		add(`p.car_name ILIKE $? ESCAPE '\'`, db.EscapeLike(f.CarName)+"%")
	}
	eq := []struct {
		col, val string
	}{
		{"p.conditions", f.Conditions},
		{"p.engine", f.Engine},
		{"p.fuel_type", f.FuelType},
		{"p.model", f.Model},
		{"p.side", f.Side},
		{"p.transmission", f.Transmission},
	}
	for _, e := range eq {
		if e.val != "" {
			add(e.col+" = $?", e.val)
		}
	}
	if f.MaxPrice > 0 {
		add("p.price <= $?", f.MaxPrice)
	}
	return strings.Join(preds, " AND "), args
}

func (r *PostgresPostRepository) Filter(ctx context.Context, f Filter, viewer string) ([]*FeedItem, error) {
	if f.IsEmpty() {
		return []*FeedItem{}, nil
	}
	where, args := filterClause(f, 2)
	return r.queryFeed(ctx, `SELECT `+feedColumns+feedFrom+`
		WHERE `+where+`
		ORDER BY p.car_name ASC, p.created_at DESC, p.id ASC`, append([]any{viewer}, args...)...)
}

// toggleQuery removes the (user, post) row if present and inserts it
// otherwise, in one statement. A returned row means the relation now exists.
func toggleQuery(table string) string {
	return fmt.Sprintf(`
		WITH removed AS (
			DELETE FROM %[1]s WHERE user_id = $1 AND post_id = $2 RETURNING 1
		)
		INSERT INTO %[1]s (user_id, post_id)
		SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
		ON CONFLICT DO NOTHING
		RETURNING true`, table)
}

var (
	toggleLikeQuery = toggleQuery("likes")
	toggleSaveQuery = toggleQuery("saves")
)

func (r *PostgresPostRepository) toggle(ctx context.Context, table, query, postID, userID string) (on bool, err error) {
	if !validID(postID) {
		return false, ErrPostNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, query, userID, postID).Scan(&on)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case db.IsCode(err, db.CodeForeignKeyViolation):
		if strings.Contains(db.Constraint(err), "post_id") {
			return false, ErrPostNotFound
		}
		return false, fmt.Errorf("%w: %s", ErrUnknownViewer, userID)
	case err != nil:
		return false, fmt.Errorf("failed to toggle %s: %w", table, err)
	}
	return on, nil
}

func (r *PostgresPostRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "likes", toggleLikeQuery, postID, userID)
}

func (r *PostgresPostRepository) ToggleSave(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "saves", toggleSaveQuery, postID, userID)
}

func (r *PostgresPostRepository) TogglePopular(ctx context.Context, postID string) (popular bool, err error) {
	if !validID(postID) {
		return false, ErrPostNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `
		UPDATE posts SET popular = NOT popular, updated_at = NOW()
		WHERE id = $1
		RETURNING popular`, postID).Scan(&popular)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrPostNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle popular: %w", err)
	}
	r.logger.Info("post popularity changed",
		slog.String("post_id", postID),
		slog.Bool("popular", popular))
	return popular, nil
}

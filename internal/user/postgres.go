package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
)

const selectColumns = `
	user_id, username,
	COALESCE(email, ''), COALESCE(bio, ''), COALESCE(city, ''),
	COALESCE(background, ''), COALESCE(profile, ''), COALESCE(facebook, ''),
	lat, lng,
	COALESCE(phone_number1, ''), COALESCE(phone_number2, ''), COALESCE(phone_number3, ''),
	COALESCE(address, ''), COALESCE(whatsapp, ''), COALESCE(x, ''),
	seller, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&u.ID, &u.Username,
		&u.Email, &u.Bio, &u.City,
		&u.Background, &u.Profile, &u.Facebook,
		&lat, &lng,
		&u.PhoneNumber1, &u.PhoneNumber2, &u.PhoneNumber3,
		&u.Address, &u.Whatsapp, &u.X,
		&u.Seller, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		u.Lat = &lat.Float64
	}
	if lng.Valid {
		u.Lng = &lng.Float64
	}
	return &u, nil
}

// PostgresRepository is a Repository over the users table.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a repository over conn. If logger is nil,
// slog.Default() is used.
func NewPostgresRepository(conn *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: conn, logger: logger}
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) (err error) {
	if err := u.Validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (
			user_id, username, email, bio, city, background, profile, facebook,
			lat, lng, phone_number1, phone_number2, phone_number3,
			address, whatsapp, x, seller, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		RETURNING updated_at`,
		u.ID, u.Username, u.Email, u.Bio, u.City, u.Background, u.Profile, u.Facebook,
		u.Lat, u.Lng, u.PhoneNumber1, u.PhoneNumber2, u.PhoneNumber3,
		u.Address, u.Whatsapp, u.X, u.Seller, u.CreatedAt,
	).Scan(&u.UpdatedAt)
	if db.IsCode(err, db.CodeUniqueViolation) {
		return fmt.Errorf("%w: %s", ErrUserExists, u.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (u *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	u, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE user_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) (users []*User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM users
		ORDER BY created_at DESC, user_id ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*User, error) {
	defer rows.Close()
	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, p Patch) (u *User, err error) {
	assignments := p.assignments()
	if len(assignments) == 0 {
		return nil, ErrEmptyPatch
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	clause, args := db.SetClause(assignments, 2)
	query := `UPDATE users SET ` + clause + `, updated_at = NOW() WHERE user_id = $1 RETURNING ` + selectColumns
	u, err = scanUser(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	r.logger.Info("user deleted", slog.String("user_id", id))
	return nil
}

func (r *PostgresRepository) ToggleSeller(ctx context.Context, id string) (seller bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `
		UPDATE users SET seller = NOT seller, updated_at = NOW()
		WHERE user_id = $1
		RETURNING seller`, id).Scan(&seller)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle seller: %w", err)
	}
	return seller, nil
}

func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (users []*User, err error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM users u
		JOIN unnest($1::text[]) WITH ORDINALITY AS ids(id, ord) ON ids.id = u.user_id
		ORDER BY ids.ord`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return collect(rows)
}

func (r *PostgresRepository) LookupOwner(ctx context.Context, id string) (o Owner, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `
		SELECT username, COALESCE(profile, ''), COALESCE(city, '')
		FROM users WHERE user_id = $1`, id).Scan(&o.Username, &o.Profile, &o.City)
	if errors.Is(err, sql.ErrNoRows) {
		return Owner{}, ErrUserNotFound
	}
	if err != nil {
		return Owner{}, fmt.Errorf("failed to look up owner: %w", err)
	}
	return o, nil
}

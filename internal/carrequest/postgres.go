package carrequest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
)

const requestColumns = `
	cr.id::text, cr.user_id, cr.car_name,
	COALESCE(cr.model, ''), COALESCE(cr.conditions, ''), COALESCE(cr.fuel_type, ''),
	COALESCE(cr.engine, ''), COALESCE(cr.transmission, ''), COALESCE(cr.color, ''),
	COALESCE(cr.side, ''), cr.city, COALESCE(cr.phone_number, ''),
	COALESCE(cr.whatsapp, ''), COALESCE(cr.information, ''), cr.status,
	cr.created_at, cr.updated_at`

const viewSelect = `
	SELECT ` + requestColumns + `, u.username, COALESCE(u.profile, '')
	FROM car_requests cr
	JOIN users u ON u.user_id = cr.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func requestDest(r *CarRequest) []any {
	return []any{
		&r.ID, &r.UserID, &r.CarName,
		&r.Model, &r.Conditions, &r.FuelType,
		&r.Engine, &r.Transmission, &r.Color,
		&r.Side, &r.City, &r.PhoneNumber,
		&r.Whatsapp, &r.Information, &r.Status,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func scanRequest(row rowScanner) (*CarRequest, error) {
	var r CarRequest
	if err := row.Scan(requestDest(&r)...); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanView(row rowScanner) (*View, error) {
	var v View
	if err := row.Scan(append(requestDest(&v.CarRequest), &v.Username, &v.Profile)...); err != nil {
		return nil, err
	}
	return &v, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// PostgresRepository is a Repository over the car_requests table.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a repository over conn.
func NewPostgresRepository(conn *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: conn, logger: logger}
}

func (r *PostgresRepository) queryViews(ctx context.Context, query string, args ...any) (views []*View, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "car_requests", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query car requests: %w", err)
	}
	defer rows.Close()

	views = []*View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car request: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate car requests: %w", err)
	}
	return views, nil
}

const newestFirst = ` ORDER BY cr.created_at DESC, cr.id ASC`

func (r *PostgresRepository) ListApproved(ctx context.Context, city string) ([]*View, error) {
	return r.queryViews(ctx, viewSelect+`
		WHERE cr.status = 'approved' AND ($1 = '' OR cr.city = $1)`+newestFirst, city)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*View, error) {
	return r.queryViews(ctx, viewSelect+newestFirst)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID, status string) ([]*View, error) {
	st, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	return r.queryViews(ctx, viewSelect+`
		WHERE cr.user_id = $1 AND ($2 = '' OR cr.status = $2)`+newestFirst, userID, string(st))
}

func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*View, error) {
	if !validID(id) {
		return nil, ErrRequestNotFound
	}
	views, err := r.queryViews(ctx, viewSelect+`
		WHERE cr.id = $1 AND ($2 = '' OR cr.user_id = $2)`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrRequestNotFound
	}
	return views[0], nil
}

func (r *PostgresRepository) Create(ctx context.Context, cr *CarRequest) (err error) {
	if err := cr.validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "car_requests", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	cr.ID = uuid.New().String()
	cr.Status = StatusPending
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = time.Now().UTC()
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO car_requests (
			id, user_id, car_name, model, conditions, fuel_type, engine, transmission,
			color, side, city, phone_number, whatsapp, information, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING updated_at`,
		cr.ID, cr.UserID, cr.CarName, cr.Model, cr.Conditions, cr.FuelType, cr.Engine, cr.Transmission,
		cr.Color, cr.Side, cr.City, cr.PhoneNumber, cr.Whatsapp, cr.Information, string(cr.Status), cr.CreatedAt,
	).Scan(&cr.UpdatedAt)
	if db.IsCode(err, db.CodeForeignKeyViolation) {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, cr.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert car request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, id, userID string, p Patch) (cr *CarRequest, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrRequestNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "car_requests", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	clause, args := db.SetClause(p.assignments(), 3)
	query := `UPDATE car_requests cr SET ` + clause + `, updated_at = NOW()
		WHERE cr.id = $1 AND ($2 = '' OR cr.user_id = $2)
		RETURNING ` + requestColumns
	cr, err = scanRequest(r.db.QueryRowContext(ctx, query, append([]any{id, userID}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update car request: %w", err)
	}
	return cr, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) (err error) {
	if !validID(id) {
		return ErrRequestNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "car_requests", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM car_requests WHERE id = $1 AND ($2 = '' OR user_id = $2)`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete car request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) (cr *CarRequest, err error) {
	st, err := ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrRequestNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "car_requests", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	cr, err = scanRequest(r.db.QueryRowContext(ctx, `
		UPDATE car_requests cr SET status = $2, updated_at = NOW()
		WHERE cr.id = $1
		RETURNING `+requestColumns, id, string(st)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set car request status: %w", err)
	}
	r.logger.Info("car request status changed",
		slog.String("request_id", id),
		slog.String("status", string(st)))
	return cr, nil
}

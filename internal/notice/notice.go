// Package notice serves the home-screen banners and broadcast notifications.
package notice

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/tracing"
	"github.com/onnwee/carmarket/internal/user"
)

var (
	ErrInvalidNotice = errors.New("invalid notice")
	ErrUnknownOwner  = errors.New("banner owner does not exist")
)

// Banner is a promoted image linking to a seller.
type Banner struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Image     string    `json:"image"`
	Title     string    `json:"title,omitempty"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username,omitempty"`
	City     string `json:"city,omitempty"`
}

// Notification is a message broadcast to every user.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *Banner) validate() error {
	b.UserID = strings.TrimSpace(b.UserID)
	b.Image = strings.TrimSpace(b.Image)
	if b.UserID == "" || b.Image == "" {
		return errors.Join(ErrInvalidNotice, errors.New("user_id and image are required"))
	}
	return nil
}

func (n *Notification) validate() error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return errors.Join(ErrInvalidNotice, errors.New("title is required"))
	}
	return nil
}

// Repository stores banners and notifications. Listings are newest first.
type Repository interface {
	ListBanners(ctx context.Context) ([]*Banner, error)
	CreateBanner(ctx context.Context, b *Banner) error
	ListNotifications(ctx context.Context) ([]*Notification, error)
	CreateNotification(ctx context.Context, n *Notification) error
}

// OwnerLookup resolves the seller a banner promotes.
type OwnerLookup interface {
	LookupOwner(ctx context.Context, userID string) (user.Owner, error)
}

// InMemoryRepository keeps notices in slices.
type InMemoryRepository struct {
	mu            sync.RWMutex
	owners        OwnerLookup
	banners       []Banner
	notifications []Notification
}

func NewInMemoryRepository(owners OwnerLookup) *InMemoryRepository {
	return &InMemoryRepository{owners: owners}
}

func (r *InMemoryRepository) ListBanners(ctx context.Context) ([]*Banner, error) {
	r.mu.RLock()
	banners := slices.Clone(r.banners)
	r.mu.RUnlock()

	out := make([]*Banner, 0, len(banners))
	for i := range banners {
		b := &banners[i]
		o, err := r.owners.LookupOwner(ctx, b.UserID)
		if errors.Is(err, user.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		b.Username, b.City = o.Username, o.City
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Banner) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *InMemoryRepository) CreateBanner(ctx context.Context, b *Banner) error {
	if err := b.validate(); err != nil {
		return err
	}
	o, err := r.owners.LookupOwner(ctx, b.UserID)
	if errors.Is(err, user.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, b.UserID)
	}
	if err != nil {
		return err
	}

	b.ID = uuid.New().String()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Username, b.City = o.Username, o.City

	r.mu.Lock()
	r.banners = append(r.banners, *b)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) ListNotifications(ctx context.Context) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Notification, len(r.notifications))
	for i := range r.notifications {
		n := r.notifications[i]
		out[i] = &n
	}
	slices.SortFunc(out, func(a, b *Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *InMemoryRepository) CreateNotification(ctx context.Context, n *Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.notifications = append(r.notifications, *n)
	r.mu.Unlock()
	return nil
}

// PostgresRepository reads and writes the banners and notifications tables.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresRepository(conn *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: conn, logger: logger}
}

func (r *PostgresRepository) ListBanners(ctx context.Context) (banners []*Banner, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "banners", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id::text, b.user_id, b.image, COALESCE(b.title, ''), COALESCE(b.link, ''),
		       b.created_at, u.username, COALESCE(u.city, '')
		FROM banners b
		JOIN users u ON u.user_id = b.user_id
		ORDER BY b.created_at DESC, b.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query banners: %w", err)
	}
	defer rows.Close()

	banners = []*Banner{}
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.UserID, &b.Image, &b.Title, &b.Link, &b.CreatedAt, &b.Username, &b.City); err != nil {
			return nil, fmt.Errorf("failed to scan banner: %w", err)
		}
		banners = append(banners, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate banners: %w", err)
	}
	return banners, nil
}

func (r *PostgresRepository) CreateBanner(ctx context.Context, b *Banner) (err error) {
	if err := b.validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "banners", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	b.ID = uuid.New().String()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	err = r.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO banners (id, user_id, image, title, link, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING user_id
		)
		SELECT u.username, COALESCE(u.city, '')
		FROM inserted JOIN users u ON u.user_id = inserted.user_id`,
		b.ID, b.UserID, b.Image, b.Title, b.Link, b.CreatedAt,
	).Scan(&b.Username, &b.City)
	if db.IsCode(err, db.CodeForeignKeyViolation) {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, b.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert banner: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListNotifications(ctx context.Context) (notes []*Notification, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, title, COALESCE(body, ''), created_at
		FROM notifications
		ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notes = []*Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notes, nil
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *Notification) (err error) {
	if err := n.validate(); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, title, body, created_at) VALUES ($1, $2, $3, $4)`,
		n.ID, n.Title, n.Body, n.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

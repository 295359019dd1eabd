package carrequest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/carmarket/internal/user"
)

// OwnerLookup resolves the owner shown on a request.
type OwnerLookup interface {
	LookupOwner(ctx context.Context, userID string) (user.Owner, error)
}

// InMemoryRepository is a Repository backed by a map.
type InMemoryRepository struct {
	mu       sync.RWMutex
	owners   OwnerLookup
	requests map[string]*CarRequest
	now      func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository(owners OwnerLookup) *InMemoryRepository {
	return &InMemoryRepository{
		owners:   owners,
		requests: make(map[string]*CarRequest),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) list(ctx context.Context, keep func(*CarRequest) bool) ([]*View, error) {
	r.mu.RLock()
	matched := make([]CarRequest, 0, len(r.requests))
	for _, cr := range r.requests {
		if keep(cr) {
			matched = append(matched, *cr)
		}
	}
	r.mu.RUnlock()

	views := make([]*View, 0, len(matched))
	for _, cr := range matched {
		o, err := r.owners.LookupOwner(ctx, cr.UserID)
		if errors.Is(err, user.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up owner of request %s: %w", cr.ID, err)
		}
		views = append(views, &View{CarRequest: cr, Username: o.Username, Profile: o.Profile})
	}
	slices.SortFunc(views, func(a, b *View) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views, nil
}

func (r *InMemoryRepository) ListApproved(ctx context.Context, city string) ([]*View, error) {
	return r.list(ctx, func(cr *CarRequest) bool {
		return cr.Status == StatusApproved && (city == "" || cr.City == city)
	})
}

func (r *InMemoryRepository) ListAll(ctx context.Context) ([]*View, error) {
	return r.list(ctx, func(*CarRequest) bool { return true })
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID, status string) ([]*View, error) {
	st, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, func(cr *CarRequest) bool {
		return cr.UserID == userID && (st == "" || cr.Status == st)
	})
}

func (r *InMemoryRepository) Get(ctx context.Context, id, userID string) (*View, error) {
	views, err := r.list(ctx, func(cr *CarRequest) bool {
		return cr.ID == id && (userID == "" || cr.UserID == userID)
	})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrRequestNotFound
	}
	return views[0], nil
}

func (r *InMemoryRepository) Create(ctx context.Context, cr *CarRequest) error {
	if err := cr.validate(); err != nil {
		return err
	}
	if _, err := r.owners.LookupOwner(ctx, cr.UserID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownOwner, cr.UserID)
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cr.ID = uuid.New().String()
	cr.Status = StatusPending
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = now
	}
	cr.UpdatedAt = now

	c := *cr
	r.requests[cr.ID] = &c
	return nil
}

// ownedLocked returns the request if it exists and userID may touch it.
// r.mu must be held.
func (r *InMemoryRepository) ownedLocked(id, userID string) (*CarRequest, error) {
	cr, ok := r.requests[id]
	if !ok || (userID != "" && cr.UserID != userID) {
		return nil, ErrRequestNotFound
	}
	return cr, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id, userID string, p Patch) (*CarRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cr, err := r.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	p.apply(cr)
	cr.UpdatedAt = r.now()
	c := *cr
	return &c, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ownedLocked(id, userID); err != nil {
		return err
	}
	delete(r.requests, id)
	return nil
}

func (r *InMemoryRepository) SetStatus(ctx context.Context, id string, status Status) (*CarRequest, error) {
	st, err := ParseStatus(string(status))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cr, err := r.ownedLocked(id, "")
	if err != nil {
		return nil, err
	}
	cr.Status = st
	cr.UpdatedAt = r.now()
	c := *cr
	return &c, nil
}

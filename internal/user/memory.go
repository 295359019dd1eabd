package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/search"
)

// InMemoryRepository is a Repository backed by a map.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.ID]; exists {
		return fmt.Errorf("%w: %s", ErrUserExists, u.ID)
	}
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *InMemoryRepository) List(ctx context.Context, limit, offset int) ([]*User, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: got %d", paging.ErrInvalidOffset, offset)
	}
	r.mu.RLock()
	all := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		all = append(all, &c)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []*User{}, nil
	}
	end := len(all)
	if limit >= 0 && limit < end-offset {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, p Patch) (*User, error) {
	if p.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	p.apply(u)
	u.UpdatedAt = r.now()

	c := *u
	return &c, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *InMemoryRepository) ToggleSeller(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false, ErrUserNotFound
	}
	u.Seller = !u.Seller
	u.UpdatedAt = r.now()
	return u.Seller, nil
}

func (r *InMemoryRepository) GetMany(ctx context.Context, ids []string) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) LookupOwner(ctx context.Context, id string) (Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return Owner{}, ErrUserNotFound
	}
	return Owner{Username: u.Username, Profile: u.Profile, City: u.City}, nil
}

// SearchCandidates implements search.CandidateLister.
func (r *InMemoryRepository) SearchCandidates(ctx context.Context) ([]search.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]search.Candidate, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, searchCandidate(u))
	}
	return out, nil
}

package post

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/user"
)

type mark struct {
	at  time.Time
	seq int64
}

// InMemoryPostRepository is an in-memory implementation of Repository.
// Owner details come from an OwnerLookup; posts whose owner no longer
// resolves are hidden from every listing.
// Thread-safe via RWMutex.
type InMemoryPostRepository struct {
	mu     sync.RWMutex
	owners OwnerLookup
	posts  map[string]*Post
	likes  map[string]map[string]struct{} // post -> users
	saves  map[string]map[string]mark     // user -> post -> when saved
	seq    int64
	now    func() time.Time
}

// NewInMemoryPostRepository creates an empty repository resolving owners via owners.
func NewInMemoryPostRepository(owners OwnerLookup) *InMemoryPostRepository {
	return &InMemoryPostRepository{
		owners: owners,
		posts:  make(map[string]*Post),
		likes:  make(map[string]map[string]struct{}),
		saves:  make(map[string]map[string]mark),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryPostRepository) Create(ctx context.Context, p *Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.requireUser(ctx, p.UserID, ErrUnknownOwner); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p.ID = uuid.New().String()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	c := *p
	c.Images = slices.Clone(p.Images)
	r.posts[p.ID] = &c
	return nil
}

func (r *InMemoryPostRepository) requireUser(ctx context.Context, id string, sentinel error) error {
	if _, err := r.owners.LookupOwner(ctx, id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", sentinel, id)
		}
		return err
	}
	return nil
}

func (r *InMemoryPostRepository) Get(ctx context.Context, id, viewer string) (*FeedItem, error) {
	r.mu.RLock()
	p, ok := r.posts[id]
	var item *FeedItem
	if ok {
		item = r.itemLocked(p, viewer)
	}
	r.mu.RUnlock()

	if !ok {
		return nil, ErrPostNotFound
	}
	items, err := r.withOwners(ctx, []*FeedItem{item})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrPostNotFound
	}
	return items[0], nil
}

func (r *InMemoryPostRepository) Update(ctx context.Context, id string, patch Patch) (*Post, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	patch.normalized().apply(p)
	p.UpdatedAt = r.now()

	c := *p
	c.Images = slices.Clone(p.Images)
	return &c, nil
}

func (r *InMemoryPostRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	delete(r.likes, id)
	for _, saved := range r.saves {
		delete(saved, id)
	}
	return nil
}

func newestFirst(a, b *FeedItem) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// list snapshots posts accepted by keep, orders them, and resolves owners
// before applying the window. A negative limit means no limit.
func (r *InMemoryPostRepository) list(ctx context.Context, viewer string, keep func(*Post) bool, order func(a, b *FeedItem) int, limit, offset int) ([]*FeedItem, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: got %d", paging.ErrInvalidOffset, offset)
	}
	r.mu.RLock()
	items := make([]*FeedItem, 0, len(r.posts))
	for _, p := range r.posts {
		if keep(p) {
			items = append(items, r.itemLocked(p, viewer))
		}
	}
	r.mu.RUnlock()

	items, err := r.withOwners(ctx, items)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, order)
	return window(items, limit, offset), nil
}

func window(items []*FeedItem, limit, offset int) []*FeedItem {
	if offset >= len(items) {
		return []*FeedItem{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *InMemoryPostRepository) ListFeed(ctx context.Context, viewer string, limit, offset int) ([]*FeedItem, error) {
	return r.list(ctx, viewer, func(*Post) bool { return true }, newestFirst, limit, offset)
}

func (r *InMemoryPostRepository) ListPopular(ctx context.Context, viewer string) ([]*FeedItem, error) {
	return r.list(ctx, viewer, func(p *Post) bool { return p.Popular }, newestFirst, -1, 0)
}

func (r *InMemoryPostRepository) ListByUser(ctx context.Context, owner, viewer string, limit, offset int) ([]*FeedItem, error) {
	return r.list(ctx, viewer, func(p *Post) bool { return p.UserID == owner }, newestFirst, limit, offset)
}

func (r *InMemoryPostRepository) ListSaved(ctx context.Context, userID string, limit, offset int) ([]*FeedItem, error) {
	r.mu.RLock()
	saved := make(map[string]mark, len(r.saves[userID]))
	for id, m := range r.saves[userID] {
		saved[id] = m
	}
	r.mu.RUnlock()

	keep := func(p *Post) bool {
		_, ok := saved[p.ID]
		return ok
	}
	bySaveTime := func(a, b *FeedItem) int {
		ma, mb := saved[a.ID], saved[b.ID]
		if c := mb.at.Compare(ma.at); c != 0 {
			return c
		}
		return cmp.Compare(mb.seq, ma.seq)
	}
	return r.list(ctx, userID, keep, bySaveTime, limit, offset)
}

func (r *InMemoryPostRepository) GetMany(ctx context.Context, ids []string, viewer string) ([]*FeedItem, error) {
	r.mu.RLock()
	items := make([]*FeedItem, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.posts[id]; ok {
			items = append(items, r.itemLocked(p, viewer))
		}
	}
	r.mu.RUnlock()

	return r.withOwners(ctx, items)
}

func (r *InMemoryPostRepository) Filter(ctx context.Context, f Filter, viewer string) ([]*FeedItem, error) {
	if f.IsEmpty() {
		return []*FeedItem{}, nil
	}
	byName := func(a, b *FeedItem) int {
		if c := cmp.Compare(a.CarName, b.CarName); c != 0 {
			return c
		}
		return newestFirst(a, b)
	}
	return r.list(ctx, viewer, f.matches, byName, -1, 0)
}

func (f Filter) matches(p *Post) bool {
	eq := func(want, got string) bool { return want == "" || want == got }
	if f.CarName != "" && !strings.HasPrefix(strings.ToLower(p.CarName), strings.ToLower(f.CarName)) {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	return eq(f.Conditions, p.Conditions) &&
		eq(f.Engine, p.Engine) &&
		eq(f.FuelType, p.FuelType) &&
		eq(f.Model, p.Model) &&
		eq(f.Side, p.Side) &&
		eq(f.Transmission, p.Transmission)
}

func (r *InMemoryPostRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	if err := r.requireUser(ctx, userID, ErrUnknownViewer); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[postID]; !ok {
		return false, ErrPostNotFound
	}
	users := r.likes[postID]
	if _, liked := users[userID]; liked {
		delete(users, userID)
		return false, nil
	}
	if users == nil {
		users = make(map[string]struct{})
		r.likes[postID] = users
	}
	users[userID] = struct{}{}
	return true, nil
}

func (r *InMemoryPostRepository) ToggleSave(ctx context.Context, postID, userID string) (bool, error) {
	if err := r.requireUser(ctx, userID, ErrUnknownViewer); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[postID]; !ok {
		return false, ErrPostNotFound
	}
	saved := r.saves[userID]
	if _, ok := saved[postID]; ok {
		delete(saved, postID)
		return false, nil
	}
	if saved == nil {
		saved = make(map[string]mark)
		r.saves[userID] = saved
	}
	r.seq++
	saved[postID] = mark{at: r.now(), seq: r.seq}
	return true, nil
}

func (r *InMemoryPostRepository) TogglePopular(ctx context.Context, postID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return false, ErrPostNotFound
	}
	p.Popular = !p.Popular
	p.UpdatedAt = r.now()
	return p.Popular, nil
}

// SearchCandidates implements search.CandidateLister. The facet is the
// owner's city.
func (r *InMemoryPostRepository) SearchCandidates(ctx context.Context) ([]search.Candidate, error) {
	items, err := r.list(ctx, "", func(*Post) bool { return true }, newestFirst, -1, 0)
	if err != nil {
		return nil, err
	}
	out := make([]search.Candidate, len(items))
	for i, it := range items {
		out[i] = search.Candidate{
			ID:        it.ID,
			Text:      it.CarName,
			Facet:     it.City,
			CreatedAt: it.CreatedAt,
		}
	}
	return out, nil
}

// itemLocked builds a feed item without owner details. r.mu must be held.
func (r *InMemoryPostRepository) itemLocked(p *Post, viewer string) *FeedItem {
	item := &FeedItem{Post: *p, LikesCount: len(r.likes[p.ID])}
	item.Images = slices.Clone(p.Images)
	if viewer != "" {
		_, item.Liked = r.likes[p.ID][viewer]
		_, item.Saved = r.saves[viewer][p.ID]
	}
	return item
}

// withOwners fills owner details and drops items whose owner is gone.
func (r *InMemoryPostRepository) withOwners(ctx context.Context, items []*FeedItem) ([]*FeedItem, error) {
	out := items[:0]
	for _, it := range items {
		o, err := r.owners.LookupOwner(ctx, it.UserID)
		if errors.Is(err, user.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up owner of post %s: %w", it.ID, err)
		}
		it.Username, it.Profile, it.City = o.Username, o.Profile, o.City
		out = append(out, it)
	}
	return out, nil
}

package post

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/carmarket/internal/user"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture is a post repository plus the user repository its owners live in.
type fixture struct {
	posts Repository
	users user.Repository
}

func (f fixture) seedUser(t *testing.T, id, name, city string) {
	t.Helper()
	if err := f.users.Create(context.Background(), &user.User{ID: id, Username: name, City: city, CreatedAt: epoch}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func (f fixture) seedPost(t *testing.T, p Post) *Post {
	t.Helper()
	if err := f.posts.Create(context.Background(), &p); err != nil {
		t.Fatalf("seed post %s: %v", p.CarName, err)
	}
	return &p
}

func itemIDs(items []*FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func carNames(items []*FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.CarName
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runRepositorySuite exercises the Repository contract against empty stores.
func runRepositorySuite(t *testing.T, newFixture func(t *testing.T) fixture) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")

		p := &Post{UserID: "u1", CarName: " Toyota Corolla ", Price: 12000, Images: []string{"a.jpg", "b.jpg"}}
		if err := f.posts.Create(ctx, p); err != nil {
			t.Fatalf("Create() returned error: %v", err)
		}
		if p.ID == "" || p.CarName != "Toyota Corolla" {
			t.Errorf("unexpected created post %+v", p)
		}

		got, err := f.posts.Get(ctx, p.ID, "")
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if got.Username != "Rebin" || got.City != "Erbil" || got.Price != 12000 {
			t.Errorf("unexpected feed item %+v", got)
		}
		if !sameStrings(got.Images, []string{"a.jpg", "b.jpg"}) {
			t.Errorf("images = %v", got.Images)
		}
		if got.LikesCount != 0 || got.Liked || got.Saved {
			t.Errorf("fresh post should have no likes or saves: %+v", got)
		}
	})

	t.Run("create validates owner", func(t *testing.T) {
		f := newFixture(t)
		if err := f.posts.Create(ctx, &Post{UserID: "ghost", CarName: "Kia"}); !errors.Is(err, ErrUnknownOwner) {
			t.Errorf("expected ErrUnknownOwner, got %v", err)
		}
		if err := f.posts.Create(ctx, &Post{UserID: "u1"}); !errors.Is(err, ErrInvalidPost) {
			t.Errorf("expected ErrInvalidPost, got %v", err)
		}
		if err := f.posts.Create(ctx, &Post{UserID: "u1", CarName: "Kia", Price: -1}); !errors.Is(err, ErrInvalidPost) {
			t.Errorf("expected ErrInvalidPost for negative price, got %v", err)
		}
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		f := newFixture(t)
		for _, id := range []string{"not-a-uuid", "6f1c1d52-6e2a-4a36-9d43-5bd3f0e5c3a1"} {
			if _, err := f.posts.Get(ctx, id, ""); !errors.Is(err, ErrPostNotFound) {
				t.Errorf("Get(%q) expected ErrPostNotFound, got %v", id, err)
			}
			if err := f.posts.Delete(ctx, id); !errors.Is(err, ErrPostNotFound) {
				t.Errorf("Delete(%q) expected ErrPostNotFound, got %v", id, err)
			}
			if _, err := f.posts.TogglePopular(ctx, id); !errors.Is(err, ErrPostNotFound) {
				t.Errorf("TogglePopular(%q) expected ErrPostNotFound, got %v", id, err)
			}
		}
	})

	t.Run("feed is newest first and paged", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		a := f.seedPost(t, Post{UserID: "u1", CarName: "A", CreatedAt: epoch})
		b := f.seedPost(t, Post{UserID: "u1", CarName: "B", CreatedAt: epoch.Add(time.Hour)})
		c := f.seedPost(t, Post{UserID: "u1", CarName: "C", CreatedAt: epoch.Add(2 * time.Hour)})

		first, err := f.posts.ListFeed(ctx, "", 2, 0)
		if err != nil {
			t.Fatalf("ListFeed() returned error: %v", err)
		}
		if !sameStrings(itemIDs(first), []string{c.ID, b.ID}) {
			t.Errorf("first page = %v", carNames(first))
		}
		second, _ := f.posts.ListFeed(ctx, "", 2, 2)
		if !sameStrings(itemIDs(second), []string{a.ID}) {
			t.Errorf("second page = %v", carNames(second))
		}
	})

	t.Run("likes and saves are per viewer", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		f.seedUser(t, "u2", "Shvan", "Duhok")
		p := f.seedPost(t, Post{UserID: "u1", CarName: "Kia Sportage"})

		liked, err := f.posts.ToggleLike(ctx, p.ID, "u2")
		if err != nil || !liked {
			t.Fatalf("ToggleLike() = %v, %v; want true", liked, err)
		}
		if _, err := f.posts.ToggleLike(ctx, p.ID, "u1"); err != nil {
			t.Fatalf("ToggleLike() returned error: %v", err)
		}
		saved, err := f.posts.ToggleSave(ctx, p.ID, "u2")
		if err != nil || !saved {
			t.Fatalf("ToggleSave() = %v, %v; want true", saved, err)
		}

		asU2, _ := f.posts.Get(ctx, p.ID, "u2")
		if asU2.LikesCount != 2 || !asU2.Liked || !asU2.Saved {
			t.Errorf("u2 view = %+v", asU2)
		}
		anon, _ := f.posts.Get(ctx, p.ID, "")
		if anon.LikesCount != 2 || anon.Liked || anon.Saved {
			t.Errorf("anonymous view = %+v", anon)
		}

		unliked, _ := f.posts.ToggleLike(ctx, p.ID, "u2")
		if unliked {
			t.Error("second ToggleLike() should unlike")
		}
		asU2, _ = f.posts.Get(ctx, p.ID, "u2")
		if asU2.LikesCount != 1 || asU2.Liked {
			t.Errorf("after unlike u2 view = %+v", asU2)
		}

		if _, err := f.posts.ToggleLike(ctx, p.ID, "ghost"); !errors.Is(err, ErrUnknownViewer) {
			t.Errorf("expected ErrUnknownViewer, got %v", err)
		}
		if _, err := f.posts.ToggleSave(ctx, "6f1c1d52-6e2a-4a36-9d43-5bd3f0e5c3a1", "u2"); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound, got %v", err)
		}
	})

	t.Run("saved list is ordered by save time", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		f.seedUser(t, "u2", "Shvan", "Duhok")
		a := f.seedPost(t, Post{UserID: "u1", CarName: "A", CreatedAt: epoch.Add(time.Hour)})
		b := f.seedPost(t, Post{UserID: "u1", CarName: "B", CreatedAt: epoch})
		f.seedPost(t, Post{UserID: "u1", CarName: "C", CreatedAt: epoch})

		for _, id := range []string{b.ID, a.ID} {
			if _, err := f.posts.ToggleSave(ctx, id, "u2"); err != nil {
				t.Fatalf("ToggleSave() returned error: %v", err)
			}
			time.Sleep(2 * time.Millisecond)
		}

		saved, err := f.posts.ListSaved(ctx, "u2", 12, 0)
		if err != nil {
			t.Fatalf("ListSaved() returned error: %v", err)
		}
		if !sameStrings(itemIDs(saved), []string{a.ID, b.ID}) {
			t.Errorf("ListSaved() = %v, want [A B]", carNames(saved))
		}
		for _, it := range saved {
			if !it.Saved {
				t.Errorf("saved list item %s should carry save_status", it.CarName)
			}
		}
	})

	t.Run("popular and by user", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		f.seedUser(t, "u2", "Shvan", "Duhok")
		a := f.seedPost(t, Post{UserID: "u1", CarName: "A", CreatedAt: epoch})
		b := f.seedPost(t, Post{UserID: "u2", CarName: "B", CreatedAt: epoch.Add(time.Hour)})

		for _, id := range []string{a.ID, b.ID} {
			on, err := f.posts.TogglePopular(ctx, id)
			if err != nil || !on {
				t.Fatalf("TogglePopular() = %v, %v", on, err)
			}
		}
		popular, _ := f.posts.ListPopular(ctx, "")
		if !sameStrings(itemIDs(popular), []string{b.ID, a.ID}) {
			t.Errorf("ListPopular() = %v", carNames(popular))
		}
		if on, _ := f.posts.TogglePopular(ctx, b.ID); on {
			t.Error("second TogglePopular() should clear the flag")
		}
		popular, _ = f.posts.ListPopular(ctx, "")
		if !sameStrings(itemIDs(popular), []string{a.ID}) {
			t.Errorf("ListPopular() after toggle = %v", carNames(popular))
		}

		mine, _ := f.posts.ListByUser(ctx, "u2", "u1", 12, 0)
		if !sameStrings(itemIDs(mine), []string{b.ID}) {
			t.Errorf("ListByUser() = %v", carNames(mine))
		}
	})

	t.Run("update", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		p := f.seedPost(t, Post{UserID: "u1", CarName: "Kia", Price: 5000})

		if _, err := f.posts.Update(ctx, p.ID, Patch{}); !errors.Is(err, ErrEmptyPatch) {
			t.Errorf("expected ErrEmptyPatch, got %v", err)
		}
		blank := "  "
		if _, err := f.posts.Update(ctx, p.ID, Patch{CarName: &blank}); !errors.Is(err, ErrInvalidPost) {
			t.Errorf("expected ErrInvalidPost, got %v", err)
		}

		price := int64(4500)
		color := "white"
		images := []string{"new.jpg"}
		got, err := f.posts.Update(ctx, p.ID, Patch{Price: &price, Color: &color, Images: &images})
		if err != nil {
			t.Fatalf("Update() returned error: %v", err)
		}
		if got.Price != 4500 || got.Color != "white" || got.CarName != "Kia" || !sameStrings(got.Images, images) {
			t.Errorf("unexpected updated post %+v", got)
		}
	})

	t.Run("get many preserves order", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		a := f.seedPost(t, Post{UserID: "u1", CarName: "A"})
		b := f.seedPost(t, Post{UserID: "u1", CarName: "B"})

		got, err := f.posts.GetMany(ctx, []string{b.ID, "bogus", a.ID}, "")
		if err != nil {
			t.Fatalf("GetMany() returned error: %v", err)
		}
		if !sameStrings(itemIDs(got), []string{b.ID, a.ID}) {
			t.Errorf("GetMany() = %v", carNames(got))
		}
	})

	t.Run("filter", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		f.seedPost(t, Post{UserID: "u1", CarName: "Toyota Corolla", Price: 9000, FuelType: "petrol", Transmission: "automatic", CreatedAt: epoch})
		f.seedPost(t, Post{UserID: "u1", CarName: "Toyota Camry", Price: 15000, FuelType: "hybrid", Transmission: "automatic", CreatedAt: epoch})
		f.seedPost(t, Post{UserID: "u1", CarName: "Kia Rio", Price: 7000, FuelType: "petrol", Transmission: "manual", CreatedAt: epoch})
		f.seedPost(t, Post{UserID: "u1", CarName: "100% Electric", Price: 30000, FuelType: "electric", CreatedAt: epoch})

		tests := []struct {
			name   string
			filter Filter
			want   []string
		}{
			{"no predicates", Filter{}, []string{}},
			{"prefix is case-insensitive", Filter{CarName: "toyota"}, []string{"Toyota Camry", "Toyota Corolla"}},
			{"predicates combine", Filter{CarName: "Toyota", FuelType: "petrol"}, []string{"Toyota Corolla"}},
			{"max price is inclusive", Filter{MaxPrice: 9000}, []string{"Kia Rio", "Toyota Corolla"}},
			{"transmission", Filter{Transmission: "automatic"}, []string{"Toyota Camry", "Toyota Corolla"}},
			{"wildcards are literal", Filter{CarName: "100%"}, []string{"100% Electric"}},
			{"underscore is literal", Filter{CarName: "T_yota"}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := f.posts.Filter(ctx, tt.filter, "")
				if err != nil {
					t.Fatalf("Filter() returned error: %v", err)
				}
				if !sameStrings(carNames(got), tt.want) {
					t.Errorf("Filter() = %v, want %v", carNames(got), tt.want)
				}
			})
		}
	})

	t.Run("delete removes likes and saves", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		p := f.seedPost(t, Post{UserID: "u1", CarName: "Kia"})
		if _, err := f.posts.ToggleSave(ctx, p.ID, "u1"); err != nil {
			t.Fatalf("ToggleSave() returned error: %v", err)
		}

		if err := f.posts.Delete(ctx, p.ID); err != nil {
			t.Fatalf("Delete() returned error: %v", err)
		}
		if _, err := f.posts.Get(ctx, p.ID, "u1"); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound after delete, got %v", err)
		}
		saved, _ := f.posts.ListSaved(ctx, "u1", 12, 0)
		if len(saved) != 0 {
			t.Errorf("saved list should be empty after delete, got %v", carNames(saved))
		}
	})

	t.Run("deleting the owner hides their posts", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "Rebin", "Erbil")
		f.seedUser(t, "u2", "Shvan", "Duhok")
		p := f.seedPost(t, Post{UserID: "u1", CarName: "Kia"})
		keep := f.seedPost(t, Post{UserID: "u2", CarName: "Opel"})

		if err := f.users.Delete(ctx, "u1"); err != nil {
			t.Fatalf("delete user: %v", err)
		}
		if _, err := f.posts.Get(ctx, p.ID, ""); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound for orphaned post, got %v", err)
		}
		feed, _ := f.posts.ListFeed(ctx, "", 12, 0)
		if !sameStrings(itemIDs(feed), []string{keep.ID}) {
			t.Errorf("ListFeed() = %v, want [Opel]", carNames(feed))
		}
	})
}

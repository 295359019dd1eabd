package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// runRepositorySuite exercises the Repository contract. newRepo must return
// an empty repository.
func runRepositorySuite(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	seed := func(t *testing.T, r Repository, id, name, city string, at time.Time) {
		t.Helper()
		if err := r.Create(ctx, &User{ID: id, Username: name, City: city, CreatedAt: at}); err != nil {
			t.Fatalf("Create(%s) returned error: %v", id, err)
		}
	}

	t.Run("create and get", func(t *testing.T) {
		r := newRepo(t)
		lat := 36.19
		u := &User{ID: " u1 ", Username: "Rebin", City: "Erbil", Lat: &lat, Whatsapp: "+964"}
		if err := r.Create(ctx, u); err != nil {
			t.Fatalf("Create() returned error: %v", err)
		}
		if u.ID != "u1" {
			t.Errorf("expected trimmed id, got %q", u.ID)
		}

		got, err := r.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if got.Username != "Rebin" || got.City != "Erbil" || got.Whatsapp != "+964" {
			t.Errorf("unexpected user %+v", got)
		}
		if got.Lat == nil || *got.Lat != lat || got.Lng != nil {
			t.Errorf("unexpected coordinates lat=%v lng=%v", got.Lat, got.Lng)
		}
		if got.Seller {
			t.Error("new users are not sellers")
		}
	})

	t.Run("create validates and rejects duplicates", func(t *testing.T) {
		r := newRepo(t)
		if err := r.Create(ctx, &User{ID: "u1"}); !errors.Is(err, ErrInvalidUser) {
			t.Errorf("expected ErrInvalidUser for missing username, got %v", err)
		}
		if err := r.Create(ctx, &User{Username: "x"}); !errors.Is(err, ErrInvalidUser) {
			t.Errorf("expected ErrInvalidUser for missing id, got %v", err)
		}
		seed(t, r, "u1", "Rebin", "Erbil", epoch)
		if err := r.Create(ctx, &User{ID: "u1", Username: "again"}); !errors.Is(err, ErrUserExists) {
			t.Errorf("expected ErrUserExists, got %v", err)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		r := newRepo(t)
		if _, err := r.Get(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("list newest first with paging", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a", "A", "Erbil", epoch)
		seed(t, r, "b", "B", "Erbil", epoch.Add(time.Hour))
		seed(t, r, "c", "C", "Duhok", epoch.Add(2*time.Hour))

		first, err := r.List(ctx, 2, 0)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		if len(first) != 2 || first[0].ID != "c" || first[1].ID != "b" {
			t.Errorf("unexpected first page %v", ids(first))
		}
		second, _ := r.List(ctx, 2, 2)
		if len(second) != 1 || second[0].ID != "a" {
			t.Errorf("unexpected second page %v", ids(second))
		}
		past, _ := r.List(ctx, 2, 10)
		if len(past) != 0 {
			t.Errorf("expected empty page past the end, got %v", ids(past))
		}
	})

	t.Run("update", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "u1", "Rebin", "Erbil", epoch)

		if _, err := r.Update(ctx, "u1", Patch{}); !errors.Is(err, ErrEmptyPatch) {
			t.Errorf("expected ErrEmptyPatch, got %v", err)
		}
		if _, err := r.Update(ctx, "nobody", Patch{City: strPtr("Duhok")}); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}

		got, err := r.Update(ctx, "u1", Patch{City: strPtr("Sulaymaniyah"), Bio: strPtr("dealer")})
		if err != nil {
			t.Fatalf("Update() returned error: %v", err)
		}
		if got.City != "Sulaymaniyah" || got.Bio != "dealer" || got.Username != "Rebin" {
			t.Errorf("unexpected updated user %+v", got)
		}
	})

	t.Run("toggle seller", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "u1", "Rebin", "Erbil", epoch)

		for _, want := range []bool{true, false} {
			got, err := r.ToggleSeller(ctx, "u1")
			if err != nil {
				t.Fatalf("ToggleSeller() returned error: %v", err)
			}
			if got != want {
				t.Errorf("ToggleSeller() = %v, want %v", got, want)
			}
		}
		if _, err := r.ToggleSeller(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("get many preserves order", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "a", "A", "Erbil", epoch)
		seed(t, r, "b", "B", "Erbil", epoch)
		seed(t, r, "c", "C", "Erbil", epoch)

		got, err := r.GetMany(ctx, []string{"c", "missing", "a", "b"})
		if err != nil {
			t.Fatalf("GetMany() returned error: %v", err)
		}
		if want := []string{"c", "a", "b"}; !equal(ids(got), want) {
			t.Errorf("GetMany() = %v, want %v", ids(got), want)
		}
		empty, _ := r.GetMany(ctx, nil)
		if len(empty) != 0 {
			t.Errorf("expected no users for empty ids, got %v", ids(empty))
		}
	})

	t.Run("delete and owner lookup", func(t *testing.T) {
		r := newRepo(t)
		u := &User{ID: "u1", Username: "Rebin", City: "Erbil", Profile: "p.jpg"}
		if err := r.Create(ctx, u); err != nil {
			t.Fatalf("Create() returned error: %v", err)
		}

		owner, err := r.LookupOwner(ctx, "u1")
		if err != nil {
			t.Fatalf("LookupOwner() returned error: %v", err)
		}
		if owner != (Owner{Username: "Rebin", Profile: "p.jpg", City: "Erbil"}) {
			t.Errorf("unexpected owner %+v", owner)
		}

		if err := r.Delete(ctx, "u1"); err != nil {
			t.Fatalf("Delete() returned error: %v", err)
		}
		if err := r.Delete(ctx, "u1"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("second Delete() should return ErrUserNotFound, got %v", err)
		}
		if _, err := r.LookupOwner(ctx, "u1"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound after delete, got %v", err)
		}
	})
}

func ids(users []*User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func equal(a, b []string) bool {
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

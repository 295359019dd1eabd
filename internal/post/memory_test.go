package post

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/user"
)

func TestInMemoryPostRepository(t *testing.T) {
	runRepositorySuite(t, func(t *testing.T) fixture {
		users := user.NewInMemoryRepository()
		return fixture{posts: NewInMemoryPostRepository(users), users: users}
	})
}

func TestInMemoryPostRepository_SearchByOwnerCity(t *testing.T) {
	users := user.NewInMemoryRepository()
	f := fixture{posts: NewInMemoryPostRepository(users), users: users}
	f.seedUser(t, "u1", "Rebin", "Erbil")
	f.seedUser(t, "u2", "Shvan", "Duhok")
	erbil := f.seedPost(t, Post{UserID: "u1", CarName: "Toyota Corolla", CreatedAt: epoch})
	f.seedPost(t, Post{UserID: "u2", CarName: "Toyota Camry", CreatedAt: epoch})

	src := search.NewInMemorySource()
	src.Register(search.EntityPosts, f.posts.(*InMemoryPostRepository))
	svc := search.NewService(src, nil, nil)

	page, err := svc.Search(context.Background(), search.EntityPosts, search.Request{
		Query: "toyota", Facet: "Erbil", Page: 1, Limit: search.PostPageSize,
	})
	if err != nil {
		t.Fatalf("Search() returned error: %v", err)
	}
	if ids := page.IDs(); len(ids) != 1 || ids[0] != erbil.ID {
		t.Errorf("expected only the Erbil listing, got %v", ids)
	}
	if page.NextPage != nil {
		t.Errorf("short page should not advertise a next page, got %d", *page.NextPage)
	}
}

func TestInMemoryPostRepository_RejectsNegativeOffset(t *testing.T) {
	users := user.NewInMemoryRepository()
	posts := NewInMemoryPostRepository(users)
	ctx := context.Background()

	if _, err := posts.ListFeed(ctx, "u1", search.PostPageSize, -search.PostPageSize); !errors.Is(err, paging.ErrInvalidOffset) {
		t.Errorf("ListFeed: expected ErrInvalidOffset, got %v", err)
	}
	if _, err := posts.ListSaved(ctx, "u1", search.PostPageSize, -1); !errors.Is(err, paging.ErrInvalidOffset) {
		t.Errorf("ListSaved: expected ErrInvalidOffset, got %v", err)
	}
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause(Filter{CarName: "50%_off", Engine: "V6", MaxPrice: 100}, 2)

	want := `p.car_name ILIKE $2 ESCAPE '\' AND p.engine = $3 AND p.price <= $4`
	if where != want {
		t.Errorf("where = %q\nwant    %q", where, want)
	}
	if len(args) != 3 || args[0] != `50\%\_off%` || args[1] != "V6" || args[2] != int64(100) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Error("zero filter should be empty")
	}
	if (Filter{MaxPrice: 1}).IsEmpty() {
		t.Error("price bound is a predicate")
	}
}

//go:build integration

package search

import (
	"context"
	"testing"

	"github.com/onnwee/carmarket/internal/db/dbtest"
)

func TestPostgresSource_MatchesInMemoryOrdering(t *testing.T) {
	conn := dbtest.Open(t)

	users := []Candidate{
		{ID: "u1", Text: "Toyota Corolla", Facet: "Erbil", CreatedAt: day(1)},
		{ID: "u2", Text: "Toy Store", Facet: "Erbil", CreatedAt: day(2)},
		{ID: "u3", Text: "My Toyota", Facet: "Duhok", CreatedAt: day(3)},
		{ID: "u4", Text: "Nissan Patrol", Facet: "Erbil", CreatedAt: day(4)},
		{ID: "u5", Text: "Tôyo Tires", Facet: "Erbil", CreatedAt: day(5)},
	}
	for _, u := range users {
		dbtest.SeedUser(t, conn, u.ID, u.Text, u.Facet, u.CreatedAt)
	}

	mem := NewInMemorySource()
	mem.Register(EntityUsers, staticLister{candidates: users})
	pg := NewPostgresSource(conn, nil)
	ctx := context.Background()

	windows := []Window{
		{Query: "toy", Limit: 12},
		{Query: "toy", Facet: "Erbil", Limit: 12},
		{Query: "toyota", Limit: 12},
		{Query: "", Limit: 2, Offset: 2},
		{Query: "corola", Limit: 12},
	}

	for _, w := range windows {
		want, err := mem.Rank(ctx, EntityUsers, w)
		if err != nil {
			t.Fatalf("in-memory rank %+v: %v", w, err)
		}
		got, err := pg.Rank(ctx, EntityUsers, w)
		if err != nil {
			t.Fatalf("postgres rank %+v: %v", w, err)
		}
		if len(got) != len(want) {
			t.Fatalf("window %+v: postgres returned %d rows, in-memory %d", w, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID {
				t.Errorf("window %+v position %d: postgres %s, in-memory %s", w, i, got[i].ID, want[i].ID)
			}
			if got[i].PrefixRank != want[i].PrefixRank {
				t.Errorf("window %+v id %s: prefix rank %d vs %d", w, got[i].ID, got[i].PrefixRank, want[i].PrefixRank)
			}
		}
	}
}

func TestPostgresSource_EscapesLikePattern(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedUser(t, conn, "u1", "Kia Sportage", "Erbil", day(1))

	pg := NewPostgresSource(conn, nil)
	got, err := pg.Rank(context.Background(), EntityUsers, Window{Query: "%", Limit: 12})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected a literal %% query to match nothing, got %d rows", len(got))
	}
}

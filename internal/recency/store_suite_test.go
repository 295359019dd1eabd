package recency

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// storeFactory returns a fresh store and registers subjects it needs to know about.
type storeFactory func(t *testing.T, subjects ...string) Store

// fixedClock returns a clock that advances by one second on every call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// runStoreSuite exercises the behaviour every Store must provide.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("created then refreshed", func(t *testing.T) {
		svc := NewService(newStore(t, "u1"), WithClock(fixedClock(epoch)))

		first, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", "p1")
		if err != nil {
			t.Fatalf("first record: %v", err)
		}
		second, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", "p1")
		if err != nil {
			t.Fatalf("second record: %v", err)
		}
		if first.Outcome != Created || second.Outcome != Refreshed {
			t.Errorf("outcomes = %s, %s; want created, refreshed", first.Outcome, second.Outcome)
		}

		entries, err := svc.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected exactly one entry, got %d", len(entries))
		}
		if !entries[0].LastInteractionAt.Equal(epoch.Add(2 * time.Second)) {
			t.Errorf("expected refreshed timestamp %v, got %v", epoch.Add(2*time.Second), entries[0].LastInteractionAt)
		}
	})

	t.Run("sixth target evicts the oldest", func(t *testing.T) {
		svc := NewService(newStore(t, "u1"), WithClock(fixedClock(epoch)))

		var evicted int
		for i := 1; i <= 6; i++ {
			res, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", fmt.Sprintf("p%d", i))
			if err != nil {
				t.Fatalf("record p%d: %v", i, err)
			}
			evicted += res.Evicted
		}
		if evicted != 1 {
			t.Errorf("expected 1 eviction, got %d", evicted)
		}

		entries, err := svc.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		got := strings.Join(TargetIDs(entries), ",")
		if got != "p6,p5,p4,p3,p2" {
			t.Errorf("ListRecent = %s, want p6,p5,p4,p3,p2", got)
		}
	})

	t.Run("refresh moves target to the front and protects it", func(t *testing.T) {
		svc := NewService(newStore(t, "u1"), WithClock(fixedClock(epoch)))

		for i := 1; i <= 5; i++ {
			if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", fmt.Sprintf("p%d", i)); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
		if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", "p1"); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", "p6"); err != nil {
			t.Fatalf("record p6: %v", err)
		}

		entries, err := svc.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		got := strings.Join(TargetIDs(entries), ",")
		if got != "p6,p1,p5,p4,p3" {
			t.Errorf("ListRecent = %s, want p6,p1,p5,p4,p3", got)
		}
	})

	t.Run("identical timestamps fall back to interaction order", func(t *testing.T) {
		svc := NewService(newStore(t, "u1"), WithClock(func() time.Time { return epoch }))

		for i := 1; i <= 7; i++ {
			if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", fmt.Sprintf("p%d", i)); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
		entries, err := svc.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		got := strings.Join(TargetIDs(entries), ",")
		if got != "p7,p6,p5,p4,p3" {
			t.Errorf("ListRecent = %s, want p7,p6,p5,p4,p3", got)
		}
	})

	t.Run("interaction time outranks call order", func(t *testing.T) {
		store := newStore(t, "u1")

		calls := []struct {
			target string
			at     time.Time
		}{
			{"late", epoch.Add(10 * time.Second)},
			{"early", epoch},
			{"middle", epoch.Add(5 * time.Second)},
		}
		var evicted int
		for _, c := range calls {
			res, err := store.Record(ctx, ViewedUsers, "u1", c.target, c.at, 2)
			if err != nil {
				t.Fatalf("record %s: %v", c.target, err)
			}
			evicted += res.Evicted
		}
		if evicted != 1 {
			t.Errorf("expected 1 eviction, got %d", evicted)
		}

		entries, err := store.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		got := strings.Join(TargetIDs(entries), ",")
		if got != "late,middle" {
			t.Errorf("ListRecent = %s, want late,middle", got)
		}
	})

	t.Run("subjects are independent", func(t *testing.T) {
		svc := NewService(newStore(t, "u1", "u2"), WithClock(fixedClock(epoch)))

		for i := 1; i <= 5; i++ {
			if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", fmt.Sprintf("a%d", i)); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
		if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u2", "b1"); err != nil {
			t.Fatalf("record: %v", err)
		}

		u1, _ := svc.ListRecent(ctx, ViewedUsers, "u1")
		u2, _ := svc.ListRecent(ctx, ViewedUsers, "u2")
		if len(u1) != 5 || len(u2) != 1 {
			t.Errorf("expected 5 and 1 entries, got %d and %d", len(u1), len(u2))
		}
	})

	t.Run("concurrent interactions respect capacity", func(t *testing.T) {
		svc := NewService(newStore(t, "u1"))

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := svc.RecordInteraction(ctx, ViewedUsers, "u1", fmt.Sprintf("t%d", i%12)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent record failed: %v", err)
		}

		entries, err := svc.ListRecent(ctx, ViewedUsers, "u1")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(entries) != DefaultCapacity {
			t.Errorf("expected %d entries, got %d", DefaultCapacity, len(entries))
		}
		seen := make(map[string]bool)
		for _, e := range entries {
			if seen[e.TargetID] {
				t.Errorf("duplicate target %s", e.TargetID)
			}
			seen[e.TargetID] = true
		}
	})

	t.Run("unknown subject lists nothing", func(t *testing.T) {
		svc := NewService(newStore(t))
		entries, err := svc.ListRecent(ctx, ViewedUsers, "nobody")
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})
}

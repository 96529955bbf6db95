// Package storetest holds behaviour checks shared by every event store
// driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"ghostwatch/pkg/domain"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func appeared(id uint32, at time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{Kind: domain.KindTownAppeared, At: at, EntityID: id, Name: "town", Points: 10 * id, X: 1.5, Y: 2.5, OwnerName: "owner", AllianceName: "ally"}
}

func conquered(id uint32, at time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{Kind: domain.KindTownConquered, At: at, EntityID: id, Name: "town", Points: 10 * id, X: 3, Y: 4, OwnerName: "taker"}
}

func departed(id uint32, at time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{Kind: domain.KindPlayerDeparted, At: at, EntityID: id, Name: "player", Points: 100, Rank: 7, Towns: 2}
}

func ids(events []domain.ChangeEvent) []uint32 {
	out := make([]uint32, 0, len(events))
	for _, e := range events {
		out = append(out, e.EntityID)
	}
	return out
}

func equalIDs(got []domain.ChangeEvent, want ...uint32) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range want {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

// RunConformance exercises the EventStore contract against a fresh store.
func RunConformance(t *testing.T, newStore func(t *testing.T) domain.EventStore) {
	t.Run("EmptyStore", func(t *testing.T) {
		store := newStore(t)
		view, err := store.Latest(context.Background(), 0)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if s := view.Summary(); s.Appeared+s.Conquered+s.Departed != 0 {
			t.Fatalf("expected empty view, got %+v", s)
		}
	})

	t.Run("AppendLatestGroupsAndOrders", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		first := domain.ChangeSet{CapturedAt: t0, Events: []domain.ChangeEvent{
			appeared(9, t0), appeared(3, t0), departed(5, t0),
		}}
		second := domain.ChangeSet{CapturedAt: t0.Add(time.Hour), Events: []domain.ChangeEvent{
			appeared(1, t0.Add(time.Hour)), conquered(9, t0.Add(time.Hour)),
		}}
		for _, set := range []domain.ChangeSet{first, second} {
			if err := store.Append(ctx, set); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		view, err := store.Latest(ctx, 10)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if !equalIDs(view.Appeared, 3, 9, 1) {
			t.Fatalf("appeared order %v", ids(view.Appeared))
		}
		if !equalIDs(view.Conquered, 9) || !equalIDs(view.Departed, 5) {
			t.Fatalf("unexpected view %+v", view.Summary())
		}
		got := view.Appeared[0]
		want := appeared(3, t0)
		if !got.At.Equal(want.At) || got.Name != want.Name || got.X != want.X || got.AllianceName != want.AllianceName {
			t.Fatalf("event not preserved: %+v", got)
		}
		if d := view.Departed[0]; d.Rank != 7 || d.Towns != 2 {
			t.Fatalf("departure fields lost: %+v", d)
		}
	})

	t.Run("RepublishIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		set := domain.ChangeSet{CapturedAt: t0, Events: []domain.ChangeEvent{
			appeared(1, t0), conquered(2, t0), departed(3, t0),
		}}
		for range 3 {
			if err := store.Append(ctx, set); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		view, err := store.Latest(ctx, 0)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if s := view.Summary(); s.Appeared != 1 || s.Conquered != 1 || s.Departed != 1 {
			t.Fatalf("republish double counted: %+v", s)
		}
	})

	t.Run("SameEntityAtDifferentTimes", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		for i := range 2 {
			at := t0.Add(time.Duration(i) * time.Hour)
			if err := store.Append(ctx, domain.ChangeSet{CapturedAt: at, Events: []domain.ChangeEvent{appeared(4, at)}}); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		view, err := store.Latest(ctx, 0)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if len(view.Appeared) != 2 {
			t.Fatalf("expected both occurrences, got %d", len(view.Appeared))
		}
	})

	t.Run("LimitKeepsNewestPerKind", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		var events []domain.ChangeEvent
		for i := range 5 {
			events = append(events, appeared(uint32(i+1), t0.Add(time.Duration(i)*time.Minute)))
		}
		events = append(events, departed(1, t0))
		if err := store.Append(ctx, domain.ChangeSet{CapturedAt: t0.Add(time.Hour), Events: events}); err != nil {
			t.Fatalf("append: %v", err)
		}
		view, err := store.Latest(ctx, 2)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if !equalIDs(view.Appeared, 4, 5) || !equalIDs(view.Departed, 1) {
			t.Fatalf("limit not applied per kind: appeared=%v departed=%v", ids(view.Appeared), ids(view.Departed))
		}
		if !view.RefreshedAt.Equal(t0.Add(4 * time.Minute)) {
			t.Fatalf("refreshed at %v", view.RefreshedAt)
		}
	})

	t.Run("EmptyChangeSetIsNoop", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		if err := store.Append(ctx, domain.ChangeSet{CapturedAt: t0}); err != nil {
			t.Fatalf("append empty: %v", err)
		}
		view, err := store.Latest(ctx, 0)
		if err != nil || len(view.Appeared)+len(view.Conquered)+len(view.Departed) != 0 {
			t.Fatalf("expected empty view, err=%v", err)
		}
	})

	t.Run("UnknownKindRejected", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		bad := domain.ChangeSet{CapturedAt: t0, Events: []domain.ChangeEvent{
			appeared(1, t0), {Kind: "bogus", At: t0, EntityID: 2},
		}}
		if err := store.Append(ctx, bad); err == nil {
			t.Fatalf("expected unknown kind error")
		}
		view, err := store.Latest(ctx, 0)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if len(view.Appeared) != 0 {
			t.Fatalf("rejected change set partially applied: %v", ids(view.Appeared))
		}
	})
}

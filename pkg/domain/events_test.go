package domain_test

import (
	"testing"
	"time"

	"ghostwatch/pkg/domain"
)

func TestSortEventsOrdersByTimeKindID(t *testing.T) {
	later := t0.Add(time.Hour)
	events := []domain.ChangeEvent{
		{Kind: domain.KindPlayerDeparted, At: t0, EntityID: 1},
		{Kind: domain.KindTownAppeared, At: later, EntityID: 1},
		{Kind: domain.KindTownConquered, At: t0, EntityID: 5},
		{Kind: domain.KindTownAppeared, At: t0, EntityID: 9},
		{Kind: domain.KindTownAppeared, At: t0, EntityID: 2},
	}
	domain.SortEvents(events)
	want := []struct {
		kind domain.EventKind
		id   uint32
	}{
		{domain.KindTownAppeared, 2},
		{domain.KindTownAppeared, 9},
		{domain.KindTownConquered, 5},
		{domain.KindPlayerDeparted, 1},
		{domain.KindTownAppeared, 1},
	}
	for i, w := range want {
		if events[i].Kind != w.kind || events[i].EntityID != w.id {
			t.Fatalf("position %d: got %s/%d, want %s/%d", i, events[i].Kind, events[i].EntityID, w.kind, w.id)
		}
	}
}

func TestEventKindRank(t *testing.T) {
	kinds := domain.Kinds()
	for i, k := range kinds {
		if k.Rank() != i || !k.Valid() {
			t.Fatalf("kind %s rank %d, want %d", k, k.Rank(), i)
		}
	}
	if domain.EventKind("other").Valid() {
		t.Fatalf("unknown kind reported valid")
	}
}

func TestEventKeyUsesNanos(t *testing.T) {
	a := domain.ChangeEvent{Kind: domain.KindTownAppeared, At: t0, EntityID: 3}
	b := a
	b.At = t0.In(time.FixedZone("X", 3600))
	if a.Key() != b.Key() {
		t.Fatalf("same instant in different zones must share a key")
	}
	b.At = t0.Add(time.Nanosecond)
	if a.Key() == b.Key() {
		t.Fatalf("different instants must differ")
	}
}

func TestChangeSetCounts(t *testing.T) {
	set := domain.ChangeSet{CapturedAt: t0, Events: []domain.ChangeEvent{
		{Kind: domain.KindTownAppeared, EntityID: 1},
		{Kind: domain.KindTownAppeared, EntityID: 2},
		{Kind: domain.KindPlayerDeparted, EntityID: 3},
	}}
	if set.Empty() || set.Count(domain.KindTownAppeared) != 2 || set.Count(domain.KindTownConquered) != 0 {
		t.Fatalf("unexpected counts for %+v", set)
	}
	if ids := set.IDs(domain.KindPlayerDeparted); len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("ids %v", ids)
	}
	if !(domain.ChangeSet{CapturedAt: t0}).Empty() {
		t.Fatalf("expected empty change set")
	}
}

func TestViewFromEventsKeepsNewest(t *testing.T) {
	var events []domain.ChangeEvent
	for i := range 5 {
		events = append(events, domain.ChangeEvent{
			Kind:     domain.KindTownConquered,
			At:       t0.Add(time.Duration(i) * time.Hour),
			EntityID: uint32(100 - i),
		})
	}
	events = append(events, domain.ChangeEvent{Kind: domain.KindPlayerDeparted, At: t0, EntityID: 1})
	v := domain.ViewFromEvents(events, 3, t0)
	if len(v.Conquered) != 3 || len(v.Departed) != 1 || len(v.Appeared) != 0 {
		t.Fatalf("unexpected view %+v", v.Summary())
	}
	if v.Conquered[0].EntityID != 98 || v.Conquered[2].EntityID != 96 {
		t.Fatalf("expected oldest-first tail, got %+v", v.Conquered)
	}
	if got := v.ByKind(domain.KindTownConquered); len(got) != 3 {
		t.Fatalf("ByKind returned %d", len(got))
	}
	s := v.Summary()
	if s.Conquered != 3 || s.Departed != 1 || !s.RefreshedAt.Equal(t0) {
		t.Fatalf("summary %+v", s)
	}
}

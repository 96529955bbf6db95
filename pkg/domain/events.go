package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/juju/errors"
)

// ErrInvariant marks a state that validation should have made impossible.
const ErrInvariant = errors.ConstError("domain invariant violated")

// DefaultViewLimit caps the number of events per kind in a View.
const DefaultViewLimit = 200

// EventKind enumerates the changes detected between two snapshots.
type EventKind string

// Event kinds, listed in tie-break order.
const (
	// KindTownAppeared records a town that lost its owner.
	KindTownAppeared EventKind = "ghost_town_appeared"
	// KindTownConquered records a ghost town that gained an owner.
	KindTownConquered EventKind = "ghost_town_conquered"
	// KindPlayerDeparted records a player missing from the newer snapshot.
	KindPlayerDeparted EventKind = "player_departed"
)

// Kinds lists every event kind in tie-break order.
func Kinds() []EventKind {
	return []EventKind{KindTownAppeared, KindTownConquered, KindPlayerDeparted}
}

// Rank returns the tie-break position of k, or -1 for unknown kinds.
func (k EventKind) Rank() int {
	switch k {
	case KindTownAppeared:
		return 0
	case KindTownConquered:
		return 1
	case KindPlayerDeparted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool { return k.Rank() >= 0 }

// ChangeEvent is a denormalised record of one detected change. Town events
// carry a position and the owner who held (appeared) or took (conquered) the
// town; departure events carry the player's last rank and town count.
type ChangeEvent struct {
	Kind         EventKind `json:"kind"`
	At           time.Time `json:"at"`
	EntityID     uint32    `json:"entity_id"`
	Name         string    `json:"name"`
	Points       uint32    `json:"points"`
	X            float64   `json:"x,omitempty"`
	Y            float64   `json:"y,omitempty"`
	OwnerName    string    `json:"owner_name,omitempty"`
	AllianceName string    `json:"alliance_name,omitempty"`
	Rank         uint16    `json:"rank,omitempty"`
	Towns        uint16    `json:"towns,omitempty"`
}

// EventKey is the natural identity of an event. Stores ignore an event whose
// key is already recorded.
type EventKey struct {
	Kind     EventKind
	EntityID uint32
	AtNanos  int64
}

// Key returns the natural identity of e.
func (e ChangeEvent) Key() EventKey {
	return EventKey{Kind: e.Kind, EntityID: e.EntityID, AtNanos: e.At.UnixNano()}
}

// CompareEvents orders events by (At, Kind, EntityID).
func CompareEvents(a, b ChangeEvent) int {
	if c := a.At.Compare(b.At); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind.Rank(), b.Kind.Rank()); c != 0 {
		return c
	}
	return cmp.Compare(a.EntityID, b.EntityID)
}

// SortEvents sorts events in place by (At, Kind, EntityID).
func SortEvents(events []ChangeEvent) {
	slices.SortFunc(events, CompareEvents)
}

// ChangeSet is the ordered output of one diff. CapturedAt is the timestamp of
// the newer snapshot even when Events is empty.
type ChangeSet struct {
	CapturedAt time.Time     `json:"captured_at"`
	Events     []ChangeEvent `json:"events"`
}

// Empty reports whether no change was detected.
func (c ChangeSet) Empty() bool { return len(c.Events) == 0 }

// Count returns the number of events of the given kind.
func (c ChangeSet) Count(kind EventKind) int {
	n := 0
	for _, e := range c.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// IDs returns the entity ids of events of the given kind in event order.
func (c ChangeSet) IDs(kind EventKind) []uint32 {
	var ids []uint32
	for _, e := range c.Events {
		if e.Kind == kind {
			ids = append(ids, e.EntityID)
		}
	}
	return ids
}

// View is the aggregate the presentation layer serves: the most recent events
// of each kind, oldest first.
type View struct {
	Appeared    []ChangeEvent `json:"appeared"`
	Conquered   []ChangeEvent `json:"conquered"`
	Departed    []ChangeEvent `json:"departed"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

// Summary counts the events held by a View.
type Summary struct {
	Appeared    int       `json:"appeared"`
	Conquered   int       `json:"conquered"`
	Departed    int       `json:"departed"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Summary returns the per-kind counts of v.
func (v View) Summary() Summary {
	return Summary{
		Appeared:    len(v.Appeared),
		Conquered:   len(v.Conquered),
		Departed:    len(v.Departed),
		RefreshedAt: v.RefreshedAt,
	}
}

// ByKind returns the events of the given kind.
func (v View) ByKind(kind EventKind) []ChangeEvent {
	switch kind {
	case KindTownAppeared:
		return v.Appeared
	case KindTownConquered:
		return v.Conquered
	case KindPlayerDeparted:
		return v.Departed
	default:
		return nil
	}
}

// ViewFromEvents groups events by kind, keeping the newest limit entries of
// each kind in (At, EntityID) order.
func ViewFromEvents(events []ChangeEvent, limit int, refreshedAt time.Time) View {
	sorted := slices.Clone(events)
	SortEvents(sorted)
	v := View{RefreshedAt: refreshedAt}
	for _, e := range sorted {
		switch e.Kind {
		case KindTownAppeared:
			v.Appeared = append(v.Appeared, e)
		case KindTownConquered:
			v.Conquered = append(v.Conquered, e)
		case KindPlayerDeparted:
			v.Departed = append(v.Departed, e)
		}
	}
	v.Appeared = newest(v.Appeared, limit)
	v.Conquered = newest(v.Conquered, limit)
	v.Departed = newest(v.Departed, limit)
	return v
}

func newest(events []ChangeEvent, limit int) []ChangeEvent {
	if limit > 0 && len(events) > limit {
		return events[len(events)-limit:]
	}
	return events
}

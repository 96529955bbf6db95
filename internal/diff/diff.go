// Package diff compares two validated snapshots and derives the ordered set
// of change events between them.
package diff

import (
	"time"

	"github.com/juju/errors"

	"ghostwatch/pkg/domain"
)

// Diff returns the events that explain how previous became current. Every
// event is stamped with current's capture time. The result depends only on
// the two snapshots.
//
// A town that becomes a ghost is rendered from previous, where its last owner
// is known; a conquered ghost town is rendered from current, where its new
// owner is known. Towns missing from the snapshot needed to render them are
// skipped, so a town that disappears outright produces no event.
func Diff(previous, current domain.ValidSnapshot) (domain.ChangeSet, error) {
	if previous.IsZero() || current.IsZero() {
		return domain.ChangeSet{}, errors.Annotate(domain.ErrInvariant, "diff requires two validated snapshots")
	}
	prev, cur := previous.Snapshot(), current.Snapshot()
	at := cur.CapturedAt()
	set := domain.ChangeSet{CapturedAt: at}
	if prev.SameWorld(cur) {
		return set, nil
	}

	ghostsPrev := prev.GhostTownIDs()
	ghostsCur := cur.GhostTownIDs()

	for id := range ghostsCur {
		if _, was := ghostsPrev[id]; was {
			continue
		}
		town, ok := prev.Town(id)
		if !ok {
			continue
		}
		ev, err := renderTown(prev, town, domain.KindTownAppeared, at)
		if err != nil {
			return domain.ChangeSet{}, err
		}
		set.Events = append(set.Events, ev)
	}

	for id := range ghostsPrev {
		if _, still := ghostsCur[id]; still {
			continue
		}
		town, ok := cur.Town(id)
		if !ok {
			continue
		}
		ev, err := renderTown(cur, town, domain.KindTownConquered, at)
		if err != nil {
			return domain.ChangeSet{}, err
		}
		set.Events = append(set.Events, ev)
	}

	for _, p := range prev.Players() {
		if _, ok := cur.Player(p.ID); ok {
			continue
		}
		set.Events = append(set.Events, domain.ChangeEvent{
			Kind:         domain.KindPlayerDeparted,
			At:           at,
			EntityID:     p.ID,
			Name:         p.Name,
			Points:       p.Points,
			AllianceName: prev.AllianceName(p),
			Rank:         p.Rank,
			Towns:        p.Towns,
		})
	}

	domain.SortEvents(set.Events)
	return set, nil
}

// renderTown denormalises an owned town from the snapshot that knows its
// owner.
func renderTown(s *domain.Snapshot, town domain.Town, kind domain.EventKind, at time.Time) (domain.ChangeEvent, error) {
	owner, ok := s.Player(town.OwnerID)
	if !ok {
		return domain.ChangeEvent{}, errors.Annotatef(domain.ErrInvariant, "%s town %d: owner %d not found", kind, town.ID, town.OwnerID)
	}
	x, y, ok := s.Position(town)
	if !ok {
		return domain.ChangeEvent{}, errors.Annotatef(domain.ErrInvariant, "%s town %d: position unresolved", kind, town.ID)
	}
	return domain.ChangeEvent{
		Kind:         kind,
		At:           at,
		EntityID:     town.ID,
		Name:         town.Name,
		Points:       town.Points,
		X:            x,
		Y:            y,
		OwnerName:    owner.Name,
		AllianceName: s.AllianceName(owner),
	}, nil
}

package testutil

import (
	"slices"
	"testing"
	"time"

	"ghostwatch/pkg/domain"
)

// HomeIsland is the island every town built with World.Town sits on.
var HomeIsland = domain.Coord{X: 10, Y: 20}

// WorldSlots is the number of slot offsets NewWorld registers.
const WorldSlots = 4

// World assembles snapshot tables for tests. Methods mutate and return the
// receiver so fixtures read as a chain.
type World struct {
	tables domain.Tables
}

// NewWorld returns a world holding HomeIsland and WorldSlots offsets.
func NewWorld() *World {
	w := &World{}
	w.tables.Islands = append(w.tables.Islands, domain.Island{ID: 1, Coord: HomeIsland, Type: 1, Towns: WorldSlots})
	for slot := range uint8(WorldSlots) {
		w.tables.Offsets = append(w.tables.Offsets, domain.Offset{
			Slot: slot,
			Type: 1,
			DX:   uint16(slot) * 125,
			DY:   uint16(slot) * 250,
		})
	}
	return w
}

// Clone returns an independent copy of w.
func (w *World) Clone() *World {
	return &World{tables: domain.Tables{
		Alliances: slices.Clone(w.tables.Alliances),
		Players:   slices.Clone(w.tables.Players),
		Islands:   slices.Clone(w.tables.Islands),
		Offsets:   slices.Clone(w.tables.Offsets),
		Towns:     slices.Clone(w.tables.Towns),
	}}
}

// Alliance adds an alliance.
func (w *World) Alliance(id uint32, name string) *World {
	w.tables.Alliances = append(w.tables.Alliances, domain.Alliance{ID: id, Name: name, Points: id * 1000, Rank: uint16(id)})
	return w
}

// Player adds a player; allianceID zero means unaffiliated.
func (w *World) Player(id uint32, name string, allianceID uint32) *World {
	w.tables.Players = append(w.tables.Players, domain.Player{
		ID: id, Name: name, AllianceID: allianceID, Points: id * 100, Rank: uint16(id), Towns: 1,
	})
	return w
}

// Island adds an island at (x, y).
func (w *World) Island(id uint32, x, y uint16) *World {
	w.tables.Islands = append(w.tables.Islands, domain.Island{ID: id, Coord: domain.Coord{X: x, Y: y}})
	return w
}

// Town adds a town on HomeIsland; owner zero makes it a ghost town.
func (w *World) Town(id uint32, name string, owner uint32) *World {
	return w.TownAt(id, name, owner, HomeIsland, uint8(id%WorldSlots))
}

// TownAt adds a town at an explicit island and slot.
func (w *World) TownAt(id uint32, name string, owner uint32, island domain.Coord, slot uint8) *World {
	w.tables.Towns = append(w.tables.Towns, domain.Town{
		ID: id, Name: name, Points: id * 10, OwnerID: owner, Island: island, Slot: slot,
	})
	return w
}

// SetOwner changes the owner of an existing town.
func (w *World) SetOwner(townID, owner uint32) *World {
	for i := range w.tables.Towns {
		if w.tables.Towns[i].ID == townID {
			w.tables.Towns[i].OwnerID = owner
		}
	}
	return w
}

// RemovePlayer drops a player and turns its towns into ghost towns.
func (w *World) RemovePlayer(id uint32) *World {
	w.tables.Players = slices.DeleteFunc(w.tables.Players, func(p domain.Player) bool { return p.ID == id })
	for i := range w.tables.Towns {
		if w.tables.Towns[i].OwnerID == id {
			w.tables.Towns[i].OwnerID = 0
		}
	}
	return w
}

// RemoveTown drops a town.
func (w *World) RemoveTown(id uint32) *World {
	w.tables.Towns = slices.DeleteFunc(w.tables.Towns, func(t domain.Town) bool { return t.ID == id })
	return w
}

// Tables returns a copy of the accumulated tables.
func (w *World) Tables() domain.Tables {
	return w.Clone().tables
}

// Snapshot builds the snapshot or fails the test.
func (w *World) Snapshot(t testing.TB, at time.Time) *domain.Snapshot {
	t.Helper()
	s, err := domain.NewSnapshot(at, w.Tables())
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return s
}

// Valid builds and validates the snapshot or fails the test.
func (w *World) Valid(t testing.TB, at time.Time) domain.ValidSnapshot {
	t.Helper()
	v, err := domain.Validate(w.Snapshot(t, at))
	if err != nil {
		t.Fatalf("validate snapshot: %v", err)
	}
	return v
}

package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/juju/errors"
)

// Tables groups the flat entity lists a Snapshot is built from.
type Tables struct {
	Alliances []Alliance `json:"alliances"`
	Players   []Player   `json:"players"`
	Islands   []Island   `json:"islands"`
	Offsets   []Offset   `json:"offsets"`
	Towns     []Town     `json:"towns"`
}

// Snapshot is an immutable capture of the world at one instant. Entities are
// held in flat lookup tables and reference each other only by id; callers
// resolve references through the accessor methods.
type Snapshot struct {
	capturedAt time.Time
	alliances  map[uint32]Alliance
	players    map[uint32]Player
	islands    map[Coord]Island
	offsets    map[uint8]Offset
	towns      map[uint32]Town
}

// NewSnapshot indexes the supplied tables. Duplicate keys and zero ids are
// rejected; referential checks are left to Validate.
func NewSnapshot(capturedAt time.Time, t Tables) (*Snapshot, error) {
	s := &Snapshot{
		capturedAt: capturedAt.UTC(),
		alliances:  make(map[uint32]Alliance, len(t.Alliances)),
		players:    make(map[uint32]Player, len(t.Players)),
		islands:    make(map[Coord]Island, len(t.Islands)),
		offsets:    make(map[uint8]Offset, len(t.Offsets)),
		towns:      make(map[uint32]Town, len(t.Towns)),
	}
	for _, a := range t.Alliances {
		if err := insert(s.alliances, a.ID, a, EntityAlliance); err != nil {
			return nil, err
		}
	}
	for _, p := range t.Players {
		if err := insert(s.players, p.ID, p, EntityPlayer); err != nil {
			return nil, err
		}
	}
	for _, i := range t.Islands {
		if _, dup := s.islands[i.Coord]; dup {
			return nil, errors.NotValidf("duplicate %s at %s", EntityIsland, i.Coord)
		}
		s.islands[i.Coord] = i
	}
	for _, o := range t.Offsets {
		if _, dup := s.offsets[o.Slot]; dup {
			return nil, errors.NotValidf("duplicate %s for slot %d", EntityOffset, o.Slot)
		}
		s.offsets[o.Slot] = o
	}
	for _, town := range t.Towns {
		if err := insert(s.towns, town.ID, town, EntityTown); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func insert[T any](m map[uint32]T, id uint32, v T, kind EntityType) error {
	if id == 0 {
		return errors.NotValidf("%s with zero id", kind)
	}
	if _, dup := m[id]; dup {
		return errors.NotValidf("duplicate %s %d", kind, id)
	}
	m[id] = v
	return nil
}

// CapturedAt returns the capture timestamp in UTC.
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Alliance looks up an alliance by id.
func (s *Snapshot) Alliance(id uint32) (Alliance, bool) {
	a, ok := s.alliances[id]
	return a, ok
}

// Player looks up a player by id.
func (s *Snapshot) Player(id uint32) (Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Island looks up an island by coordinate pair.
func (s *Snapshot) Island(c Coord) (Island, bool) {
	i, ok := s.islands[c]
	return i, ok
}

// Offset looks up a slot offset.
func (s *Snapshot) Offset(slot uint8) (Offset, bool) {
	o, ok := s.offsets[slot]
	return o, ok
}

// Town looks up a town by id.
func (s *Snapshot) Town(id uint32) (Town, bool) {
	t, ok := s.towns[id]
	return t, ok
}

// Alliances returns all alliances ordered by id.
func (s *Snapshot) Alliances() []Alliance { return sortedValues(s.alliances) }

// Players returns all players ordered by id.
func (s *Snapshot) Players() []Player { return sortedValues(s.players) }

// Towns returns all towns ordered by id.
func (s *Snapshot) Towns() []Town { return sortedValues(s.towns) }

// Islands returns all islands ordered by coordinate.
func (s *Snapshot) Islands() []Island {
	out := slices.Collect(maps.Values(s.islands))
	slices.SortFunc(out, func(a, b Island) int {
		if a.Coord.X != b.Coord.X {
			return int(a.Coord.X) - int(b.Coord.X)
		}
		return int(a.Coord.Y) - int(b.Coord.Y)
	})
	return out
}

// Offsets returns all offsets ordered by slot.
func (s *Snapshot) Offsets() []Offset {
	out := slices.Collect(maps.Values(s.offsets))
	slices.SortFunc(out, func(a, b Offset) int { return int(a.Slot) - int(b.Slot) })
	return out
}

func sortedValues[T any](m map[uint32]T) []T {
	out := make([]T, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[id])
	}
	return out
}

// GhostTownIDs returns the set of towns without an owner.
func (s *Snapshot) GhostTownIDs() map[uint32]struct{} {
	ids := make(map[uint32]struct{})
	for id, t := range s.towns {
		if t.IsGhost() {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Position resolves the map position of a town from its island and slot.
func (s *Snapshot) Position(t Town) (x, y float64, ok bool) {
	off, found := s.offsets[t.Slot]
	if !found {
		return 0, 0, false
	}
	if _, found := s.islands[t.Island]; !found {
		return 0, 0, false
	}
	x = float64(t.Island.X) + float64(off.DX)/OffsetScale
	y = float64(t.Island.Y) + float64(off.DY)/OffsetScale
	return x, y, true
}

// AllianceName returns the name of the player's alliance, or "" when the
// player is unaffiliated or the alliance is unknown.
func (s *Snapshot) AllianceName(p Player) string {
	if !p.HasAlliance() {
		return ""
	}
	return s.alliances[p.AllianceID].Name
}

// SameWorld reports whether both snapshots hold identical entity tables. The
// capture timestamp is not compared.
func (s *Snapshot) SameWorld(other *Snapshot) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	return maps.Equal(s.towns, other.towns) &&
		maps.Equal(s.players, other.players) &&
		maps.Equal(s.alliances, other.alliances) &&
		maps.Equal(s.islands, other.islands) &&
		maps.Equal(s.offsets, other.offsets)
}

// Tables returns copies of all entity lists in deterministic order.
func (s *Snapshot) Tables() Tables {
	return Tables{
		Alliances: s.Alliances(),
		Players:   s.Players(),
		Islands:   s.Islands(),
		Offsets:   s.Offsets(),
		Towns:     s.Towns(),
	}
}

type snapshotJSON struct {
	CapturedAt time.Time `json:"captured_at"`
	Tables
}

// MarshalJSON encodes the snapshot with id-ordered tables so equal snapshots
// produce identical bytes.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{CapturedAt: s.capturedAt, Tables: s.Tables()})
}

// UnmarshalJSON rebuilds the lookup tables from the encoded lists.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var wire snapshotJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	built, err := NewSnapshot(wire.CapturedAt, wire.Tables)
	if err != nil {
		return errors.Annotate(err, "decode snapshot")
	}
	*s = *built
	return nil
}

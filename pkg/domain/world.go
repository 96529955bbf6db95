// Package domain defines the world model captured from the snapshot source,
// the referential rules a capture must satisfy, and the change events derived
// by comparing two captures.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType identifies the kind of record held by a Snapshot.
type EntityType string

// Entity types stored in a Snapshot and referenced by violations.
const (
	// EntityAlliance identifies an alliance record.
	EntityAlliance EntityType = "alliance"
	// EntityPlayer identifies a player record.
	EntityPlayer EntityType = "player"
	// EntityIsland identifies an island record.
	EntityIsland EntityType = "island"
	// EntityOffset identifies a slot offset record.
	EntityOffset EntityType = "offset"
	// EntityTown identifies a town record.
	EntityTown EntityType = "town"
)

// OffsetScale converts offset deltas into island coordinate units.
const OffsetScale = 125

// Alliance is a group of players.
type Alliance struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Points  uint32 `json:"points"`
	Towns   uint32 `json:"towns"`
	Members uint16 `json:"members"`
	Rank    uint16 `json:"rank"`
}

// Player is a participant that may own towns. AllianceID is zero when the
// player is unaffiliated.
type Player struct {
	ID         uint32 `json:"id"`
	Name       string `json:"name"`
	AllianceID uint32 `json:"alliance_id,omitempty"`
	Points     uint32 `json:"points"`
	Rank       uint16 `json:"rank"`
	Towns      uint16 `json:"towns"`
}

// HasAlliance reports whether the player belongs to an alliance.
func (p Player) HasAlliance() bool { return p.AllianceID != 0 }

// Coord is an island position on the world map. It marshals as "x:y" so it
// can key JSON objects.
type Coord struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("%d:%d", c.X, c.Y)
}

// MarshalText implements encoding.TextMarshaler.
func (c Coord) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coord) UnmarshalText(b []byte) error {
	xs, ys, ok := strings.Cut(string(b), ":")
	if !ok {
		return fmt.Errorf("coord %q: missing separator", string(b))
	}
	x, err := strconv.ParseUint(xs, 10, 16)
	if err != nil {
		return fmt.Errorf("coord %q: x: %w", string(b), err)
	}
	y, err := strconv.ParseUint(ys, 10, 16)
	if err != nil {
		return fmt.Errorf("coord %q: y: %w", string(b), err)
	}
	c.X, c.Y = uint16(x), uint16(y)
	return nil
}

// Island hosts towns. Islands are keyed by their coordinate pair.
type Island struct {
	ID            uint32 `json:"id"`
	Coord         Coord  `json:"coord"`
	Type          uint8  `json:"type"`
	Towns         uint8  `json:"towns"`
	ResourcePlus  string `json:"resource_plus,omitempty"`
	ResourceMinus string `json:"resource_minus,omitempty"`
}

// Offset positions a town slot relative to its island origin.
type Offset struct {
	Slot uint8  `json:"slot"`
	Type uint8  `json:"type"`
	DX   uint16 `json:"dx"`
	DY   uint16 `json:"dy"`
}

// Town is a territory on an island slot. OwnerID is zero for ghost towns.
type Town struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Points  uint32 `json:"points"`
	OwnerID uint32 `json:"owner_id,omitempty"`
	Island  Coord  `json:"island"`
	Slot    uint8  `json:"slot"`
}

// IsGhost reports whether the town has no owner.
func (t Town) IsGhost() bool { return t.OwnerID == 0 }

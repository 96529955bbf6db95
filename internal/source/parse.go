package source

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"ghostwatch/pkg/domain"
)

// Resource file names served by the snapshot source.
const (
	ResourceAlliances = "alliances.txt"
	ResourcePlayers   = "players.txt"
	ResourceTowns     = "towns.txt"
	ResourceIslands   = "islands.txt"
	resourceOffsets   = "offsets.csv"
)

// ParseError reports a malformed record. Line is 1-based.
type ParseError struct {
	Resource string
	Line     int
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %d: field %s: %v", e.Resource, e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

const errMissingField = errors.ConstError("missing")

// record reads typed fields from one comma separated line and keeps the first
// failure.
type record struct {
	resource string
	line     int
	fields   []string
	err      error
}

func (r *record) raw(idx int, field string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	if idx >= len(r.fields) {
		r.fail(field, errMissingField)
		return "", false
	}
	return r.fields[idx], true
}

func (r *record) fail(field string, err error) {
	if r.err == nil {
		r.err = &ParseError{Resource: r.resource, Line: r.line, Field: field, Err: err}
	}
}

func (r *record) uint(idx int, field string, bits int) uint64 {
	s, ok := r.raw(idx, field)
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		r.fail(field, err)
		return 0
	}
	return v
}

// optionalUint treats an empty field as zero.
func (r *record) optionalUint(idx int, field string, bits int) uint64 {
	s, ok := r.raw(idx, field)
	if !ok || s == "" {
		return 0
	}
	return r.uint(idx, field, bits)
}

func (r *record) text(idx int, field string) string {
	s, _ := r.raw(idx, field)
	return s
}

// name decodes a form encoded display name.
func (r *record) name(idx int, field string) string {
	s, ok := r.raw(idx, field)
	if !ok {
		return ""
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		r.fail(field, err)
		return ""
	}
	return decoded
}

// eachRecord calls fn for every non-blank line of rd.
func eachRecord(resource string, rd io.Reader, fn func(*record)) error {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rec := &record{resource: resource, line: line, fields: strings.Split(text, ",")}
		fn(rec)
		if rec.err != nil {
			return rec.err
		}
	}
	if err := sc.Err(); err != nil {
		return &ParseError{Resource: resource, Line: line + 1, Field: "line", Err: err}
	}
	return nil
}

// ParseAlliances reads id,name,points,towns,members,rank records.
func ParseAlliances(rd io.Reader) ([]domain.Alliance, error) {
	var out []domain.Alliance
	err := eachRecord(ResourceAlliances, rd, func(r *record) {
		a := domain.Alliance{
			ID:      uint32(r.uint(0, "id", 32)),
			Name:    r.name(1, "name"),
			Points:  uint32(r.uint(2, "points", 32)),
			Towns:   uint32(r.uint(3, "towns", 32)),
			Members: uint16(r.uint(4, "members", 16)),
			Rank:    uint16(r.uint(5, "rank", 16)),
		}
		if r.err == nil {
			out = append(out, a)
		}
	})
	return out, err
}

// ParsePlayers reads id,name,alliance_id,points,rank,towns records. An empty
// alliance id marks an unaffiliated player.
func ParsePlayers(rd io.Reader) ([]domain.Player, error) {
	var out []domain.Player
	err := eachRecord(ResourcePlayers, rd, func(r *record) {
		p := domain.Player{
			ID:         uint32(r.uint(0, "id", 32)),
			Name:       r.name(1, "name"),
			AllianceID: uint32(r.optionalUint(2, "alliance_id", 32)),
			Points:     uint32(r.uint(3, "points", 32)),
			Rank:       uint16(r.uint(4, "rank", 16)),
			Towns:      uint16(r.uint(5, "towns", 16)),
		}
		if r.err == nil {
			out = append(out, p)
		}
	})
	return out, err
}

// ParseTowns reads id,player_id,name,island_x,island_y,slot,points records. An
// empty player id marks a ghost town.
func ParseTowns(rd io.Reader) ([]domain.Town, error) {
	var out []domain.Town
	err := eachRecord(ResourceTowns, rd, func(r *record) {
		t := domain.Town{
			ID:      uint32(r.uint(0, "id", 32)),
			OwnerID: uint32(r.optionalUint(1, "player_id", 32)),
			Name:    r.name(2, "name"),
			Island: domain.Coord{
				X: uint16(r.uint(3, "island_x", 16)),
				Y: uint16(r.uint(4, "island_y", 16)),
			},
			Slot:   uint8(r.uint(5, "slot", 8)),
			Points: uint32(r.uint(6, "points", 32)),
		}
		if r.err == nil {
			out = append(out, t)
		}
	})
	return out, err
}

// ParseIslands reads id,x,y,type,towns,resource_plus,resource_minus records.
func ParseIslands(rd io.Reader) ([]domain.Island, error) {
	var out []domain.Island
	err := eachRecord(ResourceIslands, rd, func(r *record) {
		i := domain.Island{
			ID: uint32(r.uint(0, "id", 32)),
			Coord: domain.Coord{
				X: uint16(r.uint(1, "x", 16)),
				Y: uint16(r.uint(2, "y", 16)),
			},
			Type:          uint8(r.uint(3, "type", 8)),
			Towns:         uint8(r.uint(4, "towns", 8)),
			ResourcePlus:  r.text(5, "resource_plus"),
			ResourceMinus: r.text(6, "resource_minus"),
		}
		if r.err == nil {
			out = append(out, i)
		}
	})
	return out, err
}

// ParseOffsets reads type,dx,dy,slot records.
func ParseOffsets(rd io.Reader) ([]domain.Offset, error) {
	var out []domain.Offset
	err := eachRecord(resourceOffsets, rd, func(r *record) {
		o := domain.Offset{
			Type: uint8(r.uint(0, "type", 8)),
			DX:   uint16(r.uint(1, "dx", 16)),
			DY:   uint16(r.uint(2, "dy", 16)),
			Slot: uint8(r.uint(3, "slot", 8)),
		}
		if r.err == nil {
			out = append(out, o)
		}
	})
	return out, err
}

package source

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestParsePlayersDecodesNamesAndOptionalAlliance(t *testing.T) {
	data := "1,Hans+der+Gro%C3%9Fe,7,1200,3,4\n\n2,solo,,50,90,1\n"
	players, err := ParsePlayers(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}
	if players[0].Name != "Hans der Große" || players[0].AllianceID != 7 || players[0].Towns != 4 {
		t.Fatalf("unexpected player %+v", players[0])
	}
	if players[1].HasAlliance() || players[1].Rank != 90 {
		t.Fatalf("unexpected player %+v", players[1])
	}
}

func TestParseTownsGhostAndColumns(t *testing.T) {
	towns, err := ParseTowns(strings.NewReader("5,,Ruins,480,512,3,117\r\n6,12,Keep,480,512,4,9000\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !towns[0].IsGhost() || towns[0].Island.X != 480 || towns[0].Island.Y != 512 || towns[0].Slot != 3 || towns[0].Points != 117 {
		t.Fatalf("unexpected ghost town %+v", towns[0])
	}
	if towns[1].OwnerID != 12 || towns[1].Name != "Keep" {
		t.Fatalf("unexpected town %+v", towns[1])
	}
}

func TestParseAlliancesAndIslands(t *testing.T) {
	alliances, err := ParseAlliances(strings.NewReader("3,The+Owls,50000,20,12,1\n"))
	if err != nil || len(alliances) != 1 || alliances[0].Name != "The Owls" || alliances[0].Members != 12 {
		t.Fatalf("alliances %+v err %v", alliances, err)
	}
	islands, err := ParseIslands(strings.NewReader("77,480,512,6,2,wood,stone\n"))
	if err != nil || len(islands) != 1 {
		t.Fatalf("islands %+v err %v", islands, err)
	}
	if islands[0].Coord.X != 480 || islands[0].ResourcePlus != "wood" || islands[0].ResourceMinus != "stone" {
		t.Fatalf("unexpected island %+v", islands[0])
	}
}

func TestParseErrorsCarryLocation(t *testing.T) {
	cases := []struct {
		name  string
		parse func(string) error
		data  string
		line  int
		field string
	}{
		{"short row", func(s string) error { _, err := ParseAlliances(strings.NewReader(s)); return err }, "1,a,1,1,1,1\n2,b,1\n", 2, "towns"},
		{"bad int", func(s string) error { _, err := ParsePlayers(strings.NewReader(s)); return err }, "x,a,,1,1,1\n", 1, "id"},
		{"overflow", func(s string) error { _, err := ParseTowns(strings.NewReader(s)); return err }, "1,,a,1,1,300,1\n", 1, "slot"},
		{"bad escape", func(s string) error { _, err := ParseTowns(strings.NewReader(s)); return err }, "\n1,,%zz,1,1,1,1\n", 2, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.parse(tc.data)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if perr.Line != tc.line || perr.Field != tc.field {
				t.Fatalf("error at line %d field %s, want line %d field %s", perr.Line, perr.Field, tc.line, tc.field)
			}
		})
	}
}

func TestParseNumericErrorUnwraps(t *testing.T) {
	_, err := ParseIslands(strings.NewReader("1,a,2,3,4,x,y\n"))
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Fatalf("expected wrapped syntax error, got %v", err)
	}
}

func TestEmbeddedOffsets(t *testing.T) {
	offsets, err := Offsets()
	if err != nil {
		t.Fatalf("offsets: %v", err)
	}
	seen := map[uint8]bool{}
	for _, o := range offsets {
		if seen[o.Slot] {
			t.Fatalf("duplicate slot %d", o.Slot)
		}
		seen[o.Slot] = true
	}
	if len(offsets) == 0 || !seen[0] {
		t.Fatalf("expected slot 0 in offset table")
	}
}

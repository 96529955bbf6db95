package baseline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/juju/loggo/v2"

	"ghostwatch/internal/blob"
	"ghostwatch/testutil"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T, blobs blob.Store) *Store {
	t.Helper()
	return New(blobs, loggo.GetLogger("ghostwatch.baseline.test"))
}

func TestLoadEmpty(t *testing.T) {
	snap, err := newStore(t, blob.NewMemory()).Load(context.Background())
	if err != nil || snap != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", snap, err)
	}
}

func TestSaveLoadRoundTripAndPrune(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	store := newStore(t, blobs)
	w := testutil.NewWorld().Alliance(1, "A").Player(2, "p", 1).Town(3, "t", 2)

	older := w.Snapshot(t, t0)
	newer := w.Clone().SetOwner(3, 0).Snapshot(t, t0.Add(time.Hour))
	if err := store.Save(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := store.Save(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.SameWorld(newer) || !loaded.CapturedAt().Equal(newer.CapturedAt()) {
		t.Fatalf("loaded snapshot is not the newest")
	}
	infos, _ := blobs.List(ctx, Prefix)
	if len(infos) != 1 || infos[0].Key != Key(newer.CapturedAt()) {
		t.Fatalf("expected only newest artifact, got %+v", infos)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, blob.NewMemory())
	snap := testutil.NewWorld().Snapshot(t, t0)
	for range 2 {
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
}

func TestLoadUndecodable(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	if _, err := blobs.Put(ctx, Key(t0), bytes.NewReader([]byte("{not json")), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := newStore(t, blobs).Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestKeysSortChronologically(t *testing.T) {
	a := Key(time.Unix(9, 0))
	b := Key(time.Unix(10, 0))
	if !(a < b) {
		t.Fatalf("%s should sort before %s", a, b)
	}
}

func TestWorksOnFilesystemDriver(t *testing.T) {
	blobs, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	ctx := context.Background()
	store := newStore(t, blobs)
	snap := testutil.NewWorld().Town(1, "t", 0).Snapshot(t, t0)
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil || loaded == nil || !loaded.SameWorld(snap) {
		t.Fatalf("load: %v", err)
	}
}

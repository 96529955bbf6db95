package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"ghostwatch/internal/blob/blobtest"
	"ghostwatch/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreConformance(t *testing.T) {
	blobtest.RunConformance(t, func(t *testing.T) core.Store { return newTempStore(t) })
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", "../x", "a/../../b", "/abs", "x.meta"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if k, err := sanitizeKey("baseline//0001.json"); err != nil || k != "baseline/0001.json" {
		t.Fatalf("sanitize: %q %v", k, err)
	}
}

func TestListSkipsBlobWithoutSidecar(t *testing.T) {
	store := newTempStore(t)
	if err := os.MkdirAll(filepath.Join(store.root, "baseline"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.root, "baseline", "partial.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	list, err := store.List(context.Background(), "baseline/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected half-written blob to be invisible, got %+v", list)
	}
}

func TestPutRecordsChecksum(t *testing.T) {
	store := newTempStore(t)
	info, err := store.Put(context.Background(), "a", bytes.NewReader([]byte("hello")), core.PutOptions{Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// sha256("hello")
	if info.ETag != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("etag %s", info.ETag)
	}
	got, rc, err := store.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = rc.Close()
	if got.Metadata["k"] != "v" || got.ETag != info.ETag {
		t.Fatalf("metadata not persisted: %+v", got)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.root != DefaultRoot {
		t.Fatalf("root %q", store.root)
	}
	if _, err := os.Stat(DefaultRoot); err != nil {
		t.Fatalf("root not created: %v", err)
	}
}

package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"ghostwatch/internal/blob/blobtest"
	"ghostwatch/internal/blob/core"
)

func TestStoreConformance(t *testing.T) {
	blobtest.RunConformance(t, func(*testing.T) core.Store { return New() })
}

func TestGetReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("abc")), core.PutOptions{Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	b[0] = 'z'
	info.Metadata["a"] = "mutated"
	again, rc2, _ := store.Get(ctx, "k")
	b2, _ := io.ReadAll(rc2)
	if string(b2) != "abc" || again.Metadata["a"] != "1" {
		t.Fatalf("store state leaked through Get: %q %+v", b2, again.Metadata)
	}
}

// Package blobtest holds behaviour checks shared by every blob driver.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"ghostwatch/internal/blob/core"
)

// RunConformance exercises the Store contract against a fresh store.
func RunConformance(t *testing.T, newStore func(t *testing.T) core.Store) {
	t.Run("PutGetRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		info, err := store.Put(ctx, "baseline/0001.json", bytes.NewReader([]byte(`{"a":1}`)), core.PutOptions{ContentType: "application/json"})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if info.Key != "baseline/0001.json" || info.Size != 7 {
			t.Fatalf("unexpected info %+v", info)
		}
		got, rc, err := store.Get(ctx, "baseline/0001.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer func() { _ = rc.Close() }()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(b) != `{"a":1}` || got.Key != info.Key {
			t.Fatalf("unexpected blob %q %+v", b, got)
		}
	})

	t.Run("PutIsCreateOnly", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v1")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		_, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{})
		if !errors.Is(err, core.ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
			t.Fatalf("delete missing: ok=%v err=%v", ok, err)
		}
	})

	t.Run("ListPrefixOrdered", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		for _, k := range []string{"baseline/3", "other/1", "baseline/1", "baseline/2"} {
			if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
				t.Fatalf("put %s: %v", k, err)
			}
		}
		list, err := store.List(ctx, "baseline/")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var keys []string
		for _, inf := range list {
			keys = append(keys, inf.Key)
		}
		want := []string{"baseline/1", "baseline/2", "baseline/3"}
		if len(keys) != len(want) {
			t.Fatalf("keys %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("keys %v, want %v", keys, want)
			}
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		if _, err := store.Put(ctx, "gone", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if ok, err := store.Delete(ctx, "gone"); err != nil || !ok {
			t.Fatalf("delete: ok=%v err=%v", ok, err)
		}
		if list, _ := store.List(ctx, ""); len(list) != 0 {
			t.Fatalf("expected empty store, got %+v", list)
		}
		if _, err := store.Put(ctx, "gone", bytes.NewReader([]byte("y")), core.PutOptions{}); err != nil {
			t.Fatalf("re-put after delete: %v", err)
		}
	})
}

package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"ghostwatch/internal/blob/blobtest"
	"ghostwatch/internal/blob/core"
)

func TestStoreConformance(t *testing.T) {
	blobtest.RunConformance(t, func(*testing.T) core.Store { return NewMockForTests() })
}

func TestListFollowsContinuation(t *testing.T) {
	store := newMockStore(newFakeBucket(1))
	ctx := context.Background()
	for _, k := range []string{"p/c", "p/a", "p/b"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "p/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "p/a" || list[2].Key != "p/c" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPutThenGetBody(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Put(ctx, "x.json", bytes.NewReader([]byte(`{"ok":true}`)), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := store.Get(ctx, "x.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	b, _ := io.ReadAll(rc)
	if string(b) != `{"ok":true}` || info.ContentType != "application/json" {
		t.Fatalf("unexpected object %q %+v", b, info)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("decode: %q %v", body, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body must not decode")
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"ghostwatch/internal/infra/persistence/storetest"
	"ghostwatch/pkg/domain"
)

func TestConformance(t *testing.T) {
	storetest.RunConformance(t, func(*testing.T) domain.EventStore { return NewStore() })
}

func TestCountersAndClose(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	set := domain.ChangeSet{CapturedAt: at, Events: []domain.ChangeEvent{{Kind: domain.KindPlayerDeparted, At: at, EntityID: 1}}}
	if err := store.Append(ctx, set); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, set); err != nil {
		t.Fatalf("append: %v", err)
	}
	if store.Len() != 1 || store.Appends() != 2 {
		t.Fatalf("len=%d appends=%d", store.Len(), store.Appends())
	}
	_ = store.Close()
	if err := store.Append(ctx, set); err == nil {
		t.Fatalf("expected append after close to fail")
	}
	if _, err := store.Latest(ctx, 0); err == nil {
		t.Fatalf("expected latest after close to fail")
	}
}

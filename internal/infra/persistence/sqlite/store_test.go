package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ghostwatch/internal/infra/persistence/storetest"
	"ghostwatch/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConformance(t *testing.T) {
	storetest.RunConformance(t, func(t *testing.T) domain.EventStore { return newTestStore(t) })
}

func TestEventsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	set := domain.ChangeSet{CapturedAt: at, Events: []domain.ChangeEvent{
		{Kind: domain.KindTownAppeared, At: at, EntityID: 11, Name: "Ghost"},
	}}
	if err := store.Append(ctx, set); err != nil {
		t.Fatalf("append: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("path %q", store.Path())
	}
	_ = store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if err := reopened.Append(ctx, set); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	view, err := reopened.Latest(ctx, 0)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(view.Appeared) != 1 || view.Appeared[0].Name != "Ghost" {
		t.Fatalf("unexpected view %+v", view)
	}
}

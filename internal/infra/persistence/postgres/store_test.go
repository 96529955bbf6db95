package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"ghostwatch/internal/infra/persistence/postgres/testutil"
	"ghostwatch/internal/infra/persistence/storetest"
	"ghostwatch/pkg/domain"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestConformance(t *testing.T) {
	storetest.RunConformance(t, func(t *testing.T) domain.EventStore {
		store, _ := newStubStore(t)
		return store
	})
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := newStubStore(t)
	var sawTable, sawIndex bool
	for _, stmt := range conn.Statements() {
		up := strings.ToUpper(stmt)
		sawTable = sawTable || strings.Contains(up, "CREATE TABLE IF NOT EXISTS CHANGE_EVENTS")
		sawIndex = sawIndex || strings.Contains(up, "CREATE INDEX")
	}
	if !sawTable || !sawIndex {
		t.Fatalf("schema not applied: %v", conn.Statements())
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestAppendRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	set := domain.ChangeSet{CapturedAt: at, Events: []domain.ChangeEvent{
		{Kind: domain.KindTownAppeared, At: at, EntityID: 1},
		{Kind: domain.KindPlayerDeparted, At: at, EntityID: 2},
	}}

	conn.FailCommit = true
	if err := store.Append(ctx, set); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if rows := conn.Rows("change_events"); len(rows) != 0 {
		t.Fatalf("failed commit left %d rows", len(rows))
	}
	conn.FailCommit = false

	conn.FailBegin = true
	if err := store.Append(ctx, set); err == nil {
		t.Fatalf("expected begin error")
	}
	conn.FailBegin = false

	if err := store.Append(ctx, set); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rows := conn.Rows("change_events"); len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestLatestQueryFailure(t *testing.T) {
	store, conn := newStubStore(t)
	conn.FailTables = map[string]bool{"change_events": true}
	if _, err := store.Latest(context.Background(), 5); err == nil {
		t.Fatalf("expected query failure")
	}
}

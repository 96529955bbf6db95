package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"ghostwatch/internal/infra/persistence/memory"
	"ghostwatch/internal/infra/persistence/postgres"
	"ghostwatch/internal/infra/persistence/postgres/testutil"
)

func TestOpenEventStoreMemory(t *testing.T) {
	store, err := OpenEventStore(context.Background(), StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenEventStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := OpenEventStore(context.Background(), StorageConfig{SQLitePath: path})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, err := store.Latest(context.Background(), 0); err != nil {
		t.Fatalf("latest: %v", err)
	}
}

func TestOpenEventStorePostgres(t *testing.T) {
	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := OpenEventStore(context.Background(), StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://stub"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*postgres.Store); !ok {
		t.Fatalf("expected postgres store, got %T", store)
	}
}

func TestOpenEventStoreUnknownDriver(t *testing.T) {
	_, err := OpenEventStore(context.Background(), StorageConfig{Driver: "mongo"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

// Package postgres stores change events in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"ghostwatch/internal/infra/persistence/sqlevents"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/ghostwatch?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var dialect = sqlevents.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS change_events (
			kind TEXT NOT NULL,
			entity_id BIGINT NOT NULL,
			at_ns BIGINT NOT NULL,
			payload JSONB NOT NULL,
			UNIQUE (kind, entity_id, at_ns)
		)`,
		`CREATE INDEX IF NOT EXISTS change_events_recent ON change_events (kind, at_ns DESC, entity_id DESC)`,
	},
	Insert:     `INSERT INTO change_events(kind, entity_id, at_ns, payload) VALUES($1, $2, $3, $4) ON CONFLICT(kind, entity_id, at_ns) DO NOTHING`,
	SelectKind: `SELECT payload FROM change_events WHERE kind = $1 ORDER BY at_ns DESC, entity_id DESC LIMIT $2`,
}

// Store is the PostgreSQL event store.
type Store struct {
	*sqlevents.Store
}

// NewStore opens a store using dsn (falls back to defaultDSN), pings the
// server and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	inner, err := sqlevents.Open(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

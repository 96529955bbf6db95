// Package sqlite stores change events in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"ghostwatch/internal/infra/persistence/sqlevents"
)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "ghostwatch.db"

var dialect = sqlevents.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS change_events (
			kind TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			at_ns INTEGER NOT NULL,
			payload BLOB NOT NULL,
			UNIQUE(kind, entity_id, at_ns)
		)`,
		`CREATE INDEX IF NOT EXISTS change_events_recent ON change_events(kind, at_ns DESC, entity_id DESC)`,
	},
	Insert:     `INSERT INTO change_events(kind, entity_id, at_ns, payload) VALUES(?, ?, ?, ?) ON CONFLICT(kind, entity_id, at_ns) DO NOTHING`,
	SelectKind: `SELECT payload FROM change_events WHERE kind = ? ORDER BY at_ns DESC, entity_id DESC LIMIT ?`,
}

// Store is the SQLite event store.
type Store struct {
	*sqlevents.Store
	path string
}

// NewStore opens (creating if needed) the database file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	inner, err := sqlevents.Open(context.Background(), db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Package sqlevents implements domain.EventStore on database/sql. The sqlite
// and postgres packages supply the dialect and the connection.
package sqlevents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"ghostwatch/pkg/domain"
)

var _ domain.EventStore = (*Store)(nil)

// Dialect holds the statements a driver needs. Insert takes (kind,
// entity_id, at_ns, payload) and must ignore conflicting natural keys.
// SelectKind takes (kind, limit) and returns payloads newest first.
type Dialect struct {
	Name       string
	Schema     []string
	Insert     string
	SelectKind string
}

// Store persists change events as JSON payloads keyed by their natural
// identity.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open applies the dialect schema and returns a store over db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s schema: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Append writes every event of set in one transaction.
func (s *Store) Append(ctx context.Context, set domain.ChangeSet) error {
	if len(set.Events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, e := range set.Events {
		if !e.Kind.Valid() {
			return fmt.Errorf("append: unknown event kind %q", e.Kind)
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s %d: %w", e.Kind, e.EntityID, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Insert, string(e.Kind), int64(e.EntityID), e.At.UnixNano(), payload); err != nil {
			return fmt.Errorf("insert %s %d: %w", e.Kind, e.EntityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Latest queries the newest limit events of each kind.
func (s *Store) Latest(ctx context.Context, limit int) (domain.View, error) {
	if limit <= 0 {
		limit = domain.DefaultViewLimit
	}
	var all []domain.ChangeEvent
	var newest time.Time
	for _, kind := range domain.Kinds() {
		events, err := s.latestOfKind(ctx, kind, limit)
		if err != nil {
			return domain.View{}, err
		}
		for _, e := range events {
			if e.At.After(newest) {
				newest = e.At
			}
		}
		all = slices.Concat(all, events)
	}
	return domain.ViewFromEvents(all, limit, newest), nil
}

func (s *Store) latestOfKind(ctx context.Context, kind domain.EventKind, limit int) ([]domain.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectKind, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()
	var events []domain.ChangeEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		var e domain.ChangeEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if e.Kind != kind {
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return events, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

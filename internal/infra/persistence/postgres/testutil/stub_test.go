package testutil

import (
	"context"
	"testing"
)

func TestStubInsertConflictAndSelect(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()
	insert := `INSERT INTO items(kind, id, body) VALUES($1, $2, $3) ON CONFLICT(kind, id) DO NOTHING`
	for _, args := range [][]any{{"a", int64(1), []byte("x")}, {"a", int64(1), []byte("y")}, {"b", int64(1), []byte("z")}} {
		if _, err := db.ExecContext(ctx, insert, args...); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if n := len(conn.Rows("items")); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	rows, err := db.QueryContext(ctx, `SELECT body FROM items WHERE kind = $1 ORDER BY id LIMIT $2`, "a", 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var bodies []string
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			t.Fatalf("scan: %v", err)
		}
		bodies = append(bodies, string(b))
	}
	if len(bodies) != 1 || bodies[0] != "x" {
		t.Fatalf("unexpected bodies %v", bodies)
	}
}

func TestStubUpsertAndRollback(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()
	upsert := `INSERT INTO state(bucket, payload) VALUES($1, $2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`
	if _, err := db.ExecContext(ctx, upsert, "k", []byte("1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, "k", []byte("2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	rows := conn.Rows("state")
	if len(rows) != 1 || string(rows[0]["payload"].([]byte)) != "1" {
		t.Fatalf("rollback did not restore: %v", rows)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM state WHERE bucket = $1`, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(conn.Rows("state")) != 0 || len(conn.TableNames()) != 1 {
		t.Fatalf("delete did not remove row")
	}
}

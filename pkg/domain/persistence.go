package domain

import "context"

// EventStore is the durable log of change events. Implementations apply each
// ChangeSet in a single transaction and ignore events whose EventKey is
// already stored, so appending the same ChangeSet twice is harmless.
type EventStore interface {
	Append(ctx context.Context, set ChangeSet) error
	// Latest returns up to limit of the most recent events per kind, each
	// group ordered by (At, EntityID). A non-positive limit means
	// DefaultViewLimit.
	Latest(ctx context.Context, limit int) (View, error)
	Close() error
}

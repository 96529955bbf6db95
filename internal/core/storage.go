// Package core wires the infrastructure drivers behind factories the rest
// of the program selects from configuration.
package core

import (
	"context"
	"fmt"

	"ghostwatch/internal/infra/persistence/memory"
	"ghostwatch/internal/infra/persistence/postgres"
	"ghostwatch/internal/infra/persistence/sqlite"
	"ghostwatch/pkg/domain"
)

// StorageDriver identifies a concrete event store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the event store. Field tags are read with the
// GHOSTWATCH_ prefix by the config package.
type StorageConfig struct {
	Driver      StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"ghostwatch.db"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
}

// OpenEventStore opens the driver named by cfg. An empty driver means sqlite.
func OpenEventStore(ctx context.Context, cfg StorageConfig) (domain.EventStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		ss, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return ss, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

package core

import (
	"context"
	"fmt"
	"strings"

	"procurement/internal/infra/persistence"
	"procurement/internal/infra/persistence/file"
	"procurement/internal/infra/persistence/postgres"
	"procurement/internal/infra/persistence/sqlite"
	"procurement/internal/logger"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageFile     StorageDriver = "file"     // single JSON document on disk (default)
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Driver      StorageDriver
	Path        string // file driver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend with the default rules
// engine. An empty driver selects the file store.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, log *logger.Logger, opts ...persistence.Option) (PersistentStore, error) {
	opts = append([]persistence.Option{
		persistence.WithRulesEngine(NewDefaultRulesEngine()),
		persistence.WithLogger(log),
	}, opts...)

	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		return opened(file.Open(ctx, cfg.Path, opts...))
	case StorageMemory:
		return persistence.Apply(opts...).NewMemoryStore(nil), nil
	case StorageSQLite:
		return opened(sqlite.Open(ctx, cfg.SQLitePath, opts...))
	case StoragePostgres:
		return opened(postgres.Open(ctx, cfg.PostgresDSN, opts...))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// opened keeps a failed backend from surfacing as a non-nil interface holding
// a nil pointer.
func opened[T PersistentStore](store T, err error) (PersistentStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

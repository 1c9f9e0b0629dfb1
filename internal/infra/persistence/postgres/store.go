// Package postgres provides a Postgres-backed document store that mirrors the
// in-memory semantics and keeps the committed document in a single JSONB row.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"procurement/internal/infra/persistence"
	"procurement/internal/infra/persistence/memory"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/procurement?sslmode=disable"
	documentRowID = 1
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the document to Postgres while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	db  *sql.DB
	log *logger.Logger
}

// Open connects using dsn (falls back to defaultDSN), ensures the document
// table exists and hydrates the in-memory store from the stored row. A missing
// or unparseable row is replaced by a fresh document before Open returns.
func Open(ctx context.Context, dsn string, opts ...persistence.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	o := persistence.Apply(opts...)
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, pkgerrors.Persistence(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Persistence(err, "ping postgres")
	}
	if err := ensureDocumentTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, log: o.Logger}
	s.Store = o.NewMemoryStore(s.persist)

	doc, fresh, err := s.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ImportState(doc)
	if fresh {
		if err := s.persist(ctx, s.ExportState()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureDocumentTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS procurement_document (
		id INTEGER PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return pkgerrors.Persistence(err, "ensure document table")
	}
	return nil
}

func (s *Store) load(ctx context.Context) (domain.Document, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM procurement_document WHERE id = $1`, documentRowID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Info(ctx, "no stored document, creating a new one")
		return domain.NewDocument(), true, nil
	}
	if err != nil {
		return domain.Document{}, false, pkgerrors.Persistence(err, "select document")
	}
	doc, reset := persistence.DecodeOrReset(ctx, s.log, "postgres", payload)
	return doc, reset, nil
}

func (s *Store) persist(ctx context.Context, doc domain.Document) (retErr error) {
	defer func() {
		if retErr != nil {
			s.log.Error(ctx, "persist document", retErr)
		}
	}()
	data, err := domain.MarshalDocument(doc)
	if err != nil {
		return pkgerrors.Persistence(err, "encode document")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Persistence(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO procurement_document(id, schema_version, payload, updated_at) VALUES($1,$2,$3,$4)
		ON CONFLICT(id) DO UPDATE SET schema_version=EXCLUDED.schema_version, payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		documentRowID, doc.SchemaVersion, data, time.Now().UTC()); err != nil {
		return pkgerrors.Persistence(err, "upsert document")
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.Persistence(err, "commit")
	}
	committed = true
	return nil
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

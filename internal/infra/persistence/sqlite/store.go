// Package sqlite persists the procurement document to a single-row SQLite
// table. Transactions run against the embedded in-memory store; the committed
// document is upserted as one JSON payload inside a SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"procurement/internal/infra/persistence"
	"procurement/internal/infra/persistence/memory"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "procurement.db"

// Store persists the document to SQLite after every committed transaction.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
	log  *logger.Logger
}

// Open opens or creates the database at path and loads the stored document.
// A missing row starts a fresh document; an unparseable payload is logged and
// replaced. Either way the fresh document is written before Open returns.
func Open(ctx context.Context, path string, opts ...persistence.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	o := persistence.Apply(opts...)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, pkgerrors.Persistence(err, "create storage directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "open sqlite")
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Persistence(err, "create document table")
	}
	s := &Store{db: db, path: path, log: o.Logger}
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

func (s *Store) load(ctx context.Context) (domain.Document, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM document WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Info(s.log.WithField(ctx, "path", s.path), "no stored document, creating a new one")
		return domain.NewDocument(), true, nil
	}
	if err != nil {
		return domain.Document{}, false, pkgerrors.Persistence(err, "select document")
	}
	doc, reset := persistence.DecodeOrReset(ctx, s.log, s.path, payload)
	return doc, reset, nil
}

func (s *Store) persist(ctx context.Context, doc domain.Document) (retErr error) {
	data, err := domain.MarshalDocument(doc)
	if err != nil {
		return pkgerrors.Persistence(err, "encode document")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Persistence(err, "begin sqlite transaction")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
			s.log.Error(s.log.WithField(ctx, "path", s.path), "persist document", retErr)
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO document(id,schema_version,payload,updated_at) VALUES(1,?,?,?)
		ON CONFLICT(id) DO UPDATE SET schema_version=excluded.schema_version, payload=excluded.payload, updated_at=excluded.updated_at`,
		doc.SchemaVersion, data, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return pkgerrors.Persistence(err, "upsert document")
	}
	if err = tx.Commit(); err != nil {
		return pkgerrors.Persistence(err, "commit sqlite transaction")
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

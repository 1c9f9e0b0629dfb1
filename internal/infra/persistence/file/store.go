// Package file persists the procurement document as a single JSON file. Every
// committed transaction rewrites the whole file through a temp file that is
// fsynced and then renamed over the target, so a crash leaves either the old
// or the new document on disk, never a torn one.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"procurement/internal/infra/persistence"
	"procurement/internal/infra/persistence/memory"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// TempSuffix is appended to the target path to name the staging file.
const TempSuffix = ".tmp"

// Test seams for the replace step.
var (
	replaceFile = os.Rename
	removeFile  = os.Remove
)

// Store is a file-backed document store.
type Store struct {
	*memory.Store
	path string
	log  *logger.Logger
}

// Open loads the document at path, creating the parent directory first. A
// missing file starts a fresh document; an unreadable or corrupt one is logged
// and replaced by a fresh document. In both cases the fresh document is saved
// immediately and Open fails only if that save fails.
func Open(ctx context.Context, path string, opts ...persistence.Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pkgerrors.Validation("storage path is required")
	}
	o := persistence.Apply(opts...)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, pkgerrors.Persistence(err, "create storage directory")
	}
	s := &Store{path: path, log: o.Logger}
	s.Store = o.NewMemoryStore(s.save)

	doc, fresh := s.load(ctx)
	s.ImportState(doc)
	if fresh {
		if err := s.save(ctx, s.ExportState()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the target file path.
func (s *Store) Path() string { return s.path }

// Save writes the committed document to disk.
func (s *Store) Save(ctx context.Context) error {
	return s.save(ctx, s.ExportState())
}

func (s *Store) load(ctx context.Context) (domain.Document, bool) {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Info(s.log.WithField(ctx, "path", s.path), "no stored document, creating a new one")
		return domain.NewDocument(), true
	case err != nil:
		persistence.Discard(ctx, s.log, s.path, err)
		return domain.NewDocument(), true
	}
	return persistence.DecodeOrReset(ctx, s.log, s.path, data)
}

func (s *Store) save(ctx context.Context, doc domain.Document) error {
	data, err := domain.MarshalDocument(doc)
	if err != nil {
		return pkgerrors.Persistence(err, "encode document")
	}
	tmp, err := writeTemp(s.path, data)
	if err != nil {
		s.log.Error(s.log.WithField(ctx, "path", s.path), "write temp document", err)
		return pkgerrors.Persistence(err, "write document")
	}
	if err := replace(tmp, s.path); err != nil {
		s.log.Error(s.log.WithField(ctx, "path", s.path), "replace document", err)
		return pkgerrors.Persistence(err, "replace document")
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

// writeTemp writes data to <target>.tmp and flushes it to stable storage.
func writeTemp(target string, data []byte) (string, error) {
	tmp := target + TempSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return "", multierr.Combine(fmt.Errorf("write temp file: %w", err), f.Close(), cleanup(tmp))
	}
	if err := f.Sync(); err != nil {
		return "", multierr.Combine(fmt.Errorf("sync temp file: %w", err), f.Close(), cleanup(tmp))
	}
	if err := f.Close(); err != nil {
		return "", multierr.Append(fmt.Errorf("close temp file: %w", err), cleanup(tmp))
	}
	return tmp, nil
}

// replace moves tmp over target. When the platform refuses to rename over an
// existing file the target is removed first; the document is briefly absent
// from disk in that window.
func replace(tmp, target string) error {
	err := replaceFile(tmp, target)
	if err == nil {
		return nil
	}
	if rmErr := removeFile(target); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return multierr.Combine(fmt.Errorf("rename temp file: %w", err), rmErr, cleanup(tmp))
	}
	if retryErr := replaceFile(tmp, target); retryErr != nil {
		return multierr.Combine(fmt.Errorf("rename temp file: %w", retryErr), cleanup(tmp))
	}
	return nil
}

func cleanup(tmp string) error {
	if err := removeFile(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}

// syncDir flushes the directory entry for the renamed file. Not every
// platform supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

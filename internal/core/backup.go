package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"procurement/internal/blob"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// BackupPrefix is the key prefix document snapshots are written under.
const BackupPrefix = "backups/"

const backupTimeLayout = "20060102T150405.000000000Z"

// ErrBackupsDisabled is returned by backup operations when no blob store is
// configured.
var ErrBackupsDisabled = errors.New("backups are not configured")

// Backup writes the committed document as a JSON snapshot to the blob store.
func (s *Service) Backup(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "backup", func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrBackupsDisabled
		}
		doc := s.store.ExportState()
		payload, err := domain.MarshalDocument(doc)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode backup")
		}
		key := fmt.Sprintf("%s%s-%s.json", BackupPrefix, s.clock.Now().UTC().Format(backupTimeLayout), uuid.NewString()[:8])
		info, err = s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"schema_version": strconv.Itoa(doc.SchemaVersion)},
		})
		if err != nil {
			return pkgerrors.Persistence(err, "write backup")
		}
		return nil
	})
	return info, err
}

// ListBackups returns stored snapshots, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]blob.Info, error) {
	var out []blob.Info
	err := s.run(ctx, "list_backups", func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrBackupsDisabled
		}
		infos, err := s.blobs.List(ctx, BackupPrefix)
		if err != nil {
			return pkgerrors.Persistence(err, "list backups")
		}
		sort.SliceStable(infos, func(i, j int) bool { return infos[i].Key > infos[j].Key })
		out = infos
		return nil
	})
	return out, err
}

package core

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/blob"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func TestBackupWritesDocumentSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	fsStore, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	for _, store := range []blob.Store{blob.NewMemory(), fsStore, blob.NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			svc := NewInMemoryService(nil, WithBlobStore(store), WithClock(clock))
			_, err := svc.CreateSupplier(ctx, "Acme", nil, nil, nil)
			require.NoError(t, err)

			first, err := svc.Backup(ctx)
			require.NoError(t, err)
			assert.Contains(t, first.Key, "backups/20240501T120000.000000000Z-")
			assert.Equal(t, "application/json", first.ContentType)

			clock.t = clock.t.Add(time.Hour)
			second, err := svc.Backup(ctx)
			require.NoError(t, err)

			list, err := svc.ListBackups(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.Key, list[0].Key, "newest first")
			assert.Equal(t, first.Key, list[1].Key)

			_, rc, err := store.Get(ctx, first.Key)
			require.NoError(t, err)
			payload, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			doc, err := domain.UnmarshalDocument(payload)
			require.NoError(t, err)
			require.Len(t, doc.Suppliers, 1)
			assert.Equal(t, "Acme", doc.Suppliers[0].Name)

			clock.t = clock.t.Add(-time.Hour)
		})
	}
}

func TestBackupsDisabled(t *testing.T) {
	svc := NewInMemoryService(nil)
	_, err := svc.Backup(context.Background())
	assert.ErrorIs(t, err, ErrBackupsDisabled)
	_, err = svc.ListBackups(context.Background())
	assert.ErrorIs(t, err, ErrBackupsDisabled)
}

type failingBlobStore struct{ blob.Store }

func (failingBlobStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, io.ErrShortWrite
}

func TestBackupPutFailureIsPersistenceError(t *testing.T) {
	svc := NewInMemoryService(nil, WithBlobStore(failingBlobStore{Store: blob.NewMemory()}))
	_, err := svc.Backup(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

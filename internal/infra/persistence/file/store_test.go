package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/infra/persistence"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

func openStore(t *testing.T, path string, opts ...persistence.Option) *Store {
	t.Helper()
	store, err := Open(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addStock(t *testing.T, store *Store, name string, qty int64) domain.StockItem {
	t.Helper()
	var item domain.StockItem
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		item, err = tx.CreateStockItem(domain.StockItem{Name: name, QuantityOnHand: decimal.NewFromInt(qty)})
		return err
	})
	require.NoError(t, err)
	return item
}

func TestOpenCreatesDirectoryAndFreshDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Storage", "nested", "database.json")
	store := openStore(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := domain.UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDocument(), doc)
	assert.Equal(t, path, store.Path())

	_, err = os.Stat(path + TempSuffix)
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}

func TestMutationsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := openStore(t, path)
	item := addStock(t, store, "Bolts", 4)

	reopened := openStore(t, path)
	got, ok := reopened.ExportState().FindStockItem(item.ID)
	require.True(t, ok)
	assert.Equal(t, "Bolts", got.Name)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(4)))
}

func TestOpenResetsCorruptFile(t *testing.T) {
	payloads := map[string][]byte{
		"truncated json": []byte(`{"SchemaVersion": 1, "Users": [`),
		"garbage":        []byte("\x00\x01not json"),
		"empty":          {},
		"duplicate ids": []byte(`{"Suppliers":[{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","Name":"a"},
			{"Id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","Name":"b"}]}`),
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "database.json")
			require.NoError(t, os.WriteFile(path, payload, 0o600))

			var logs bytes.Buffer
			store := openStore(t, path, persistence.WithLogger(logger.New(logger.Options{Output: &logs})))

			assert.Equal(t, domain.NewDocument(), store.ExportState())
			assert.Contains(t, logs.String(), `"level":"warn"`)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			_, err = domain.UnmarshalDocument(data)
			assert.NoError(t, err, "reset document must be saved")
		})
	}
}

func TestOpenKeepsSparseButValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stock":[{"id":"0b6c7c1e-6a0e-4b7a-9d0e-0c1f3f6d8a02","name":"Bolts","quantityOnHand":"3"}]}`), 0o600))

	store := openStore(t, path)
	doc := store.ExportState()
	require.Len(t, doc.Stock, 1)
	assert.Equal(t, "Bolts", doc.Stock[0].Name)
	assert.Empty(t, doc.Users)
}

func TestOpenFailsWhenRecoverySaveFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "database.json")
	// A directory squatting on the temp name makes the temp write fail.
	require.NoError(t, os.Mkdir(path+TempSuffix, 0o750))

	_, err := Open(context.Background(), path)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
}

func TestOpenRejectsBlankPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCrashBeforeReplaceLeavesPreviousDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := openStore(t, path)
	item := addStock(t, store, "Bolts", 1)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	next := store.ExportState()
	next.Stock[0].QuantityOnHand = decimal.NewFromInt(99)
	data, err := domain.MarshalDocument(next)
	require.NoError(t, err)
	// Simulate a crash after the temp file is durable but before it replaces the target.
	_, err = writeTemp(path, data)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	reopened := openStore(t, path)
	got, ok := reopened.ExportState().FindStockItem(item.ID)
	require.True(t, ok)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(1)))
}

func TestCrashAfterReplaceLoadsNewDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := openStore(t, path)
	item := addStock(t, store, "Bolts", 1)

	next := store.ExportState()
	next.Stock[0].QuantityOnHand = decimal.NewFromInt(99)
	data, err := domain.MarshalDocument(next)
	require.NoError(t, err)
	tmp, err := writeTemp(path, data)
	require.NoError(t, err)
	require.NoError(t, replace(tmp, path))

	reopened := openStore(t, path)
	got, ok := reopened.ExportState().FindStockItem(item.ID)
	require.True(t, ok)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(99)))
}

func TestReplaceFallsBackToRemoveThenRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := openStore(t, path)

	calls := 0
	replaceFile = func(oldpath, newpath string) error {
		calls++
		if calls == 1 {
			if _, err := os.Stat(newpath); err == nil {
				return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
			}
		}
		return os.Rename(oldpath, newpath)
	}
	t.Cleanup(func() { replaceFile = os.Rename })

	item := addStock(t, store, "Nuts", 2)
	assert.Equal(t, 2, calls)

	reopened := openStore(t, path)
	_, ok := reopened.ExportState().FindStockItem(item.ID)
	assert.True(t, ok)
}

func TestSaveFailureIsPersistenceErrorAndMemoryKeepsMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	var logs bytes.Buffer
	store := openStore(t, path, persistence.WithLogger(logger.New(logger.Options{Output: &logs})))

	replaceFile = func(string, string) error { return errors.New("device busy") }
	removeFile = func(string) error { return errors.New("permission denied") }
	t.Cleanup(func() {
		replaceFile = os.Rename
		removeFile = os.Remove
	})

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSupplier(domain.Supplier{Name: "Acme"})
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.Contains(t, err.Error(), "device busy")
	assert.Len(t, store.ExportState().Suppliers, 1)
	assert.Contains(t, logs.String(), `"level":"error"`)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	doc, decodeErr := domain.UnmarshalDocument(data)
	require.NoError(t, decodeErr)
	assert.Empty(t, doc.Suppliers, "file must keep the last successful save")
}

func TestExplicitSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store := openStore(t, path)
	require.NoError(t, os.Remove(path))

	require.NoError(t, store.Save(context.Background()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

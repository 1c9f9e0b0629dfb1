package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/infra/persistence"
	"procurement/internal/infra/persistence/postgres/testutil"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

func withStubDB(t *testing.T) (*sql.DB, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	return db, conn
}

func storedPayload(t *testing.T, conn *testutil.StubConn) []byte {
	t.Helper()
	rows := conn.Tables["procurement_document"]
	require.Len(t, rows, 1)
	payload, ok := rows[0]["payload"].([]byte)
	require.True(t, ok, "payload stored as %T", rows[0]["payload"])
	return payload
}

func TestOpenCreatesTableAndFreshDocument(t *testing.T) {
	_, conn := withStubDB(t)

	store, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.NewDocument(), store.ExportState())

	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS PROCUREMENT_DOCUMENT") {
			sawDDL = true
		}
	}
	assert.True(t, sawDDL, "execs: %v", conn.Execs)

	doc, err := domain.UnmarshalDocument(storedPayload(t, conn))
	require.NoError(t, err)
	assert.Equal(t, domain.NewDocument(), doc)
}

func TestRunInTransactionPersistsDocument(t *testing.T) {
	_, conn := withStubDB(t)
	store, err := Open(context.Background(), "ignored")
	require.NoError(t, err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSupplier(domain.Supplier{Name: "Acme"})
		return err
	})
	require.NoError(t, err)

	doc, err := domain.UnmarshalDocument(storedPayload(t, conn))
	require.NoError(t, err)
	require.Len(t, doc.Suppliers, 1)
	assert.Equal(t, "Acme", doc.Suppliers[0].Name)
	assert.Equal(t, 2, conn.Commits)
}

func TestOpenLoadsExistingDocument(t *testing.T) {
	_, conn := withStubDB(t)
	first, err := Open(context.Background(), "dsn")
	require.NoError(t, err)
	_, err = first.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateStockItem(domain.StockItem{Name: "Bolts"})
		return err
	})
	require.NoError(t, err)

	commits := conn.Commits
	second, err := Open(context.Background(), "dsn")
	require.NoError(t, err)
	require.Len(t, second.ExportState().Stock, 1)
	assert.Equal(t, "Bolts", second.ExportState().Stock[0].Name)
	assert.Equal(t, commits, conn.Commits, "loading a valid document must not rewrite it")
}

func TestOpenResetsCorruptPayload(t *testing.T) {
	_, conn := withStubDB(t)
	conn.Tables["procurement_document"] = []map[string]any{{"id": int64(documentRowID), "payload": []byte(`{"Users":[{"Id":"x"}]}`)}}

	var logs bytes.Buffer
	store, err := Open(context.Background(), "dsn", persistence.WithLogger(logger.New(logger.Options{Output: &logs})))
	require.NoError(t, err)
	assert.Empty(t, store.ExportState().Users)
	assert.Contains(t, logs.String(), `"level":"warn"`)

	_, err = domain.UnmarshalDocument(storedPayload(t, conn))
	assert.NoError(t, err)
}

func TestOpenErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("no driver") })
		defer restore()
		_, err := Open(context.Background(), "dsn")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	})
	t.Run("ping", func(t *testing.T) {
		_, conn := withStubDB(t)
		conn.FailPing = true
		_, err := Open(context.Background(), "dsn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping postgres")
	})
	t.Run("ddl", func(t *testing.T) {
		_, conn := withStubDB(t)
		conn.FailExec = true
		_, err := Open(context.Background(), "dsn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ensure document table")
	})
	t.Run("select", func(t *testing.T) {
		_, conn := withStubDB(t)
		conn.FailQuery = true
		_, err := Open(context.Background(), "dsn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "select document")
	})
	t.Run("recovery save", func(t *testing.T) {
		_, conn := withStubDB(t)
		conn.FailCommit = true
		_, err := Open(context.Background(), "dsn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit")
	})
}

func TestPersistFailureKeepsMemoryMutation(t *testing.T) {
	_, conn := withStubDB(t)
	store, err := Open(context.Background(), "dsn")
	require.NoError(t, err)

	conn.FailBegin = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSupplier(domain.Supplier{Name: "Acme"})
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.Len(t, store.ExportState().Suppliers, 1)

	conn.FailBegin = false
	conn.FailExec = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSupplier(domain.Supplier{Name: "Globex"})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert document")
	assert.Positive(t, conn.Rollbacks)
}

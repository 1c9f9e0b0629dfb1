package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction exposes the mutations a persistence implementation supports
// within an atomic scope. Nothing is visible to other readers until the
// transaction function returns nil and the store commits.
type Transaction interface {
	Snapshot() TransactionView
	// Now is the timestamp shared by every mutation in the transaction.
	Now() time.Time
	CreateUser(User) (User, error)
	CreateSupplier(Supplier) (Supplier, error)
	CreateStockItem(StockItem) (StockItem, error)
	UpdateStockItem(id uuid.UUID, mutator func(*StockItem) error) (StockItem, error)
	CreateOrder(Order) (Order, error)
	UpdateOrder(id uuid.UUID, mutator func(*Order) error) (Order, error)
}

// TransactionView provides read-only access to document data. Returned
// values are copies.
type TransactionView interface {
	ListUsers() []User
	ListSuppliers() []Supplier
	ListStockItems() []StockItem
	ListOrders() []Order
	FindUserByLogin(login string) (User, bool)
	FindSupplier(id uuid.UUID) (Supplier, bool)
	FindStockItem(id uuid.UUID) (StockItem, bool)
	FindOrder(id uuid.UUID) (Order, bool)
}

// PersistentStore is the contract shared by the in-memory store and every
// durable backend. RunInTransaction returns only after the committed document
// has been persisted; a persistence failure is returned even though the
// in-memory state already reflects the mutation.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	// ExportState returns a deep copy of the committed document.
	ExportState() Document
	Close() error
}

// ErrNotFound is returned by transactional updates that target a missing id.
type ErrNotFound struct {
	Entity EntityType
	ID     uuid.UUID
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

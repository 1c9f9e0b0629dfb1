// Package memory provides the in-memory transactional implementation of the
// procurement document store. Durable backends embed it and persist the
// committed document through a commit hook.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"procurement/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Document aliases domain.Document.
	Document = domain.Document
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitFunc receives a deep copy of every newly committed document. It runs
// while the store's write lock is held, so commits are persisted in order.
type CommitFunc func(ctx context.Context, doc Document) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs fn as the persistence step of every transaction.
func WithCommitHook(fn CommitFunc) Option {
	return func(s *Store) { s.commit = fn }
}

// WithClock overrides the time source used to stamp CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides how ids are assigned to new entities.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// Store provides an in-memory transactional store for the procurement document.
type Store struct {
	mu     sync.RWMutex
	doc    Document
	engine *RulesEngine
	commit CommitFunc
	nowFn  func() time.Time
	idFn   func() uuid.UUID
}

// NewStore constructs an empty store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		doc:    domain.NewDocument(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the committed document.
func (s *Store) ExportState() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// ImportState replaces the committed document without running rules or the
// commit hook.
func (s *Store) ImportState(doc Document) {
	cp := doc.Clone()
	cp.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cp
}

// RulesEngine exposes the configured engine so callers can register rules.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a private copy of the document. The
// copy replaces the committed document only when fn succeeds and no blocking
// rule fires. Transactions that record no changes skip the commit hook.
//
// When the commit hook fails the new document stays committed in memory and
// the hook's error is returned unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		doc:   s.doc.Clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{doc: &tx.doc}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) == 0 {
		return result, nil
	}

	s.doc = tx.doc
	if s.commit != nil {
		if err := s.commit(ctx, s.doc.Clone()); err != nil {
			return result, err
		}
	}
	return result, nil
}

// View executes fn against a read-only snapshot of the committed document.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.doc.Clone()
	s.mu.RUnlock()
	return fn(transactionView{doc: &snapshot})
}

type transaction struct {
	store   *Store
	doc     Document
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) newID(id uuid.UUID) uuid.UUID {
	if id != uuid.Nil {
		return id
	}
	return tx.store.idFn()
}

// Snapshot returns a read-only view over the transactional document.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{doc: &tx.doc}
}

// Now is the timestamp shared by every mutation in the transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// CreateUser appends a user.
func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	u.ID = tx.newID(u.ID)
	for _, existing := range tx.doc.Users {
		if existing.ID == u.ID {
			return domain.User{}, fmt.Errorf("user %q already exists", u.ID)
		}
	}
	tx.doc.Users = append(tx.doc.Users, domain.CloneUser(u))
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: domain.CloneUser(u)})
	return domain.CloneUser(u), nil
}

// CreateSupplier appends a supplier.
func (tx *transaction) CreateSupplier(sup domain.Supplier) (domain.Supplier, error) {
	sup.ID = tx.newID(sup.ID)
	if _, exists := tx.doc.FindSupplier(sup.ID); exists {
		return domain.Supplier{}, fmt.Errorf("supplier %q already exists", sup.ID)
	}
	tx.doc.Suppliers = append(tx.doc.Suppliers, domain.CloneSupplier(sup))
	tx.recordChange(Change{Entity: domain.EntitySupplier, Action: domain.ActionCreate, After: domain.CloneSupplier(sup)})
	return domain.CloneSupplier(sup), nil
}

// CreateStockItem appends a stock item.
func (tx *transaction) CreateStockItem(item domain.StockItem) (domain.StockItem, error) {
	item.ID = tx.newID(item.ID)
	if tx.doc.StockIndex(item.ID) >= 0 {
		return domain.StockItem{}, fmt.Errorf("stock item %q already exists", item.ID)
	}
	tx.doc.Stock = append(tx.doc.Stock, domain.CloneStockItem(item))
	tx.recordChange(Change{Entity: domain.EntityStockItem, Action: domain.ActionCreate, After: domain.CloneStockItem(item)})
	return domain.CloneStockItem(item), nil
}

// UpdateStockItem mutates a stock item in place.
func (tx *transaction) UpdateStockItem(id uuid.UUID, mutator func(*domain.StockItem) error) (domain.StockItem, error) {
	idx := tx.doc.StockIndex(id)
	if idx < 0 {
		return domain.StockItem{}, domain.ErrNotFound{Entity: domain.EntityStockItem, ID: id}
	}
	before := domain.CloneStockItem(tx.doc.Stock[idx])
	current := domain.CloneStockItem(tx.doc.Stock[idx])
	if err := mutator(&current); err != nil {
		return domain.StockItem{}, err
	}
	current.ID = id
	tx.doc.Stock[idx] = domain.CloneStockItem(current)
	tx.recordChange(Change{Entity: domain.EntityStockItem, Action: domain.ActionUpdate, Before: before, After: domain.CloneStockItem(current)})
	return domain.CloneStockItem(current), nil
}

// CreateOrder appends an order stamped with the transaction time.
func (tx *transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	o.ID = tx.newID(o.ID)
	if tx.doc.OrderIndex(o.ID) >= 0 {
		return domain.Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = nil
	o = domain.CloneOrder(o)
	tx.doc.Orders = append(tx.doc.Orders, domain.CloneOrder(o))
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: domain.CloneOrder(o)})
	return o, nil
}

// UpdateOrder mutates an order and stamps UpdatedAt.
func (tx *transaction) UpdateOrder(id uuid.UUID, mutator func(*domain.Order) error) (domain.Order, error) {
	idx := tx.doc.OrderIndex(id)
	if idx < 0 {
		return domain.Order{}, domain.ErrNotFound{Entity: domain.EntityOrder, ID: id}
	}
	before := domain.CloneOrder(tx.doc.Orders[idx])
	current := domain.CloneOrder(tx.doc.Orders[idx])
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	now := tx.now
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = &now
	tx.doc.Orders[idx] = domain.CloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: domain.CloneOrder(current)})
	return domain.CloneOrder(current), nil
}

// transactionView exposes a read-only view of a document to rules and readers.
type transactionView struct {
	doc *Document
}

func (v transactionView) ListUsers() []domain.User {
	out := make([]domain.User, 0, len(v.doc.Users))
	for _, u := range v.doc.Users {
		out = append(out, domain.CloneUser(u))
	}
	return out
}

func (v transactionView) ListSuppliers() []domain.Supplier {
	out := make([]domain.Supplier, 0, len(v.doc.Suppliers))
	for _, s := range v.doc.Suppliers {
		out = append(out, domain.CloneSupplier(s))
	}
	return out
}

func (v transactionView) ListStockItems() []domain.StockItem {
	out := make([]domain.StockItem, 0, len(v.doc.Stock))
	for _, s := range v.doc.Stock {
		out = append(out, domain.CloneStockItem(s))
	}
	return out
}

func (v transactionView) ListOrders() []domain.Order {
	out := make([]domain.Order, 0, len(v.doc.Orders))
	for _, o := range v.doc.Orders {
		out = append(out, domain.CloneOrder(o))
	}
	return out
}

func (v transactionView) FindUserByLogin(login string) (domain.User, bool) {
	return v.doc.FindUserByLogin(login)
}

func (v transactionView) FindSupplier(id uuid.UUID) (domain.Supplier, bool) {
	return v.doc.FindSupplier(id)
}

func (v transactionView) FindStockItem(id uuid.UUID) (domain.StockItem, bool) {
	return v.doc.FindStockItem(id)
}

func (v transactionView) FindOrder(id uuid.UUID) (domain.Order, bool) {
	return v.doc.FindOrder(id)
}

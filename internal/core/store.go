package core

import (
	"procurement/internal/infra/persistence/memory"
	"procurement/pkg/domain"
)

type (
	// Document is the persisted aggregate.
	Document = domain.Document
	// Result aggregates rule violations reported by a transaction.
	Result = domain.Result
	// Change describes a mutation applied within a transaction.
	Change = domain.Change
	// Violation reports a failed rule evaluation.
	Violation = domain.Violation
	// Rule is evaluated before every commit.
	Rule = domain.Rule
	// RulesEngine orchestrates rule evaluation.
	RulesEngine = domain.RulesEngine
	// Transaction is the mutation surface handed to transaction callbacks.
	Transaction = domain.Transaction
	// TransactionView is the read-only surface handed to views and rules.
	TransactionView = domain.TransactionView
	// PersistentStore is implemented by every storage backend.
	PersistentStore = domain.PersistentStore
	// MemoryStore is the in-memory backend, also embedded by the durable ones.
	MemoryStore = memory.Store
)

// NewMemoryStore constructs an in-memory store. A nil engine gets the default
// rule set.
func NewMemoryStore(engine *RulesEngine, opts ...memory.Option) *MemoryStore {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return memory.NewStore(engine, opts...)
}

package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"procurement/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set:
// forward-only order status, non-negative stock and unique logins.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(OrderStatusTransitionRule())
	engine.Register(NonNegativeStockRule())
	engine.Register(UniqueLoginRule())
	return engine
}

// OrderStatusTransitionRule blocks orders that are created outside
// InProgress or that move backwards out of a terminal status.
func OrderStatusTransitionRule() Rule {
	return orderStatusTransitionRule{}
}

type orderStatusTransitionRule struct{}

func (orderStatusTransitionRule) Name() string { return "order_status_transition" }

func (r orderStatusTransitionRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityOrder {
			continue
		}
		after, ok := change.After.(domain.Order)
		if !ok {
			continue
		}
		switch change.Action {
		case domain.ActionCreate:
			if after.Status != domain.OrderStatusInProgress {
				res.Violations = append(res.Violations, r.violation(after, fmt.Sprintf("order %s must be created InProgress, got %s", after.ID, after.Status)))
			}
		case domain.ActionUpdate:
			before, ok := change.Before.(domain.Order)
			if !ok {
				continue
			}
			if !before.Status.CanTransitionTo(after.Status) {
				res.Violations = append(res.Violations, r.violation(after, fmt.Sprintf("order %s cannot move from %s to %s", after.ID, before.Status, after.Status)))
			}
		}
	}
	return res, nil
}

func (r orderStatusTransitionRule) violation(o domain.Order, msg string) Violation {
	return Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityOrder,
		EntityID: o.ID.String(),
	}
}

// NonNegativeStockRule blocks commits that create or update a stock item
// with a negative quantity. Items the transaction did not touch are not
// re-checked.
func NonNegativeStockRule() Rule {
	return nonNegativeStockRule{}
}

type nonNegativeStockRule struct{}

func (nonNegativeStockRule) Name() string { return "non_negative_stock" }

func (r nonNegativeStockRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityStockItem {
			continue
		}
		item, ok := change.After.(domain.StockItem)
		if !ok || !item.QuantityOnHand.IsNegative() {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("stock item %s (%s) has negative quantity %s", item.Name, item.ID, item.QuantityOnHand),
			Entity:   domain.EntityStockItem,
			EntityID: item.ID.String(),
		})
	}
	return res, nil
}

// UniqueLoginRule blocks commits where a created or updated user shares a
// login with another user, ignoring case.
func UniqueLoginRule() Rule {
	return uniqueLoginRule{}
}

type uniqueLoginRule struct{}

func (uniqueLoginRule) Name() string { return "unique_login" }

func (r uniqueLoginRule) Evaluate(_ context.Context, view TransactionView, changes []Change) (Result, error) {
	res := Result{}
	changed := make(map[uuid.UUID]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityUser {
			continue
		}
		if user, ok := change.After.(domain.User); ok {
			changed[user.ID] = struct{}{}
		}
	}
	if len(changed) == 0 {
		return res, nil
	}
	seen := make(map[string]domain.User)
	for _, user := range view.ListUsers() {
		key := strings.ToLower(user.Login)
		first, dup := seen[key]
		if !dup {
			seen[key] = user
			continue
		}
		offender := user
		if _, ok := changed[user.ID]; !ok {
			if _, ok := changed[first.ID]; !ok {
				continue
			}
			offender = first
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("login %q already exists", offender.Login),
			Entity:   domain.EntityUser,
			EntityID: offender.ID.String(),
		})
	}
	return res, nil
}

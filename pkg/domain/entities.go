// Package domain defines the persisted procurement document, its entities and
// the rule evaluation primitives applied to every store transaction.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityType identifies the collection an entity lives in.
type EntityType string

// Supported entity type identifiers used in Change records and violations.
const (
	EntityUser      EntityType = "user"
	EntitySupplier  EntityType = "supplier"
	EntityStockItem EntityType = "stock_item"
	EntityOrder     EntityType = "order"
)

// User is an operator account. Passwords are opaque and compared verbatim.
type User struct {
	ID       uuid.UUID `json:"Id"`
	Login    string    `json:"Login"`
	Password string    `json:"Password"`
	Role     Role      `json:"Role"`
}

// Supplier is a vendor orders are placed with.
type Supplier struct {
	ID           uuid.UUID `json:"Id"`
	Name         string    `json:"Name"`
	ContactEmail *string   `json:"ContactEmail"`
	Phone        *string   `json:"Phone"`
	Notes        *string   `json:"Notes"`
}

// StockItem tracks the quantity on hand of a purchasable item.
type StockItem struct {
	ID                uuid.UUID        `json:"Id"`
	Name              string           `json:"Name"`
	QuantityOnHand    decimal.Decimal  `json:"QuantityOnHand"`
	TargetLevel       *decimal.Decimal `json:"TargetLevel"`
	LastPurchasePrice *decimal.Decimal `json:"LastPurchasePrice"`
}

// BelowTarget reports whether the item has a target level and sits under it.
func (s StockItem) BelowTarget() bool {
	return s.TargetLevel != nil && s.QuantityOnHand.LessThan(*s.TargetLevel)
}

// OrderLine references a stock item; it does not own it.
type OrderLine struct {
	StockItemID uuid.UUID       `json:"StockItemId"`
	Quantity    decimal.Decimal `json:"Quantity"`
	UnitPrice   decimal.Decimal `json:"UnitPrice"`
}

// Amount is UnitPrice × Quantity.
func (l OrderLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// Order is a purchase order placed with a supplier. Lines are persisted under
// the "Items" key.
type Order struct {
	ID         uuid.UUID   `json:"Id"`
	SupplierID uuid.UUID   `json:"SupplierId"`
	Status     OrderStatus `json:"Status"`
	CreatedAt  time.Time   `json:"CreatedAt"`
	UpdatedAt  *time.Time  `json:"UpdatedAt"`
	Lines      []OrderLine `json:"Items"`
}

// Total is derived from the lines on every call and never stored.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Amount())
	}
	return total
}

// ContainsStockItem reports whether any line references the stock item.
func (o Order) ContainsStockItem(id uuid.UUID) bool {
	for _, line := range o.Lines {
		if line.StockItemID == id {
			return true
		}
	}
	return false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// CloneUser returns a copy of u.
func CloneUser(u User) User { return u }

// CloneSupplier returns a deep copy of s.
func CloneSupplier(s Supplier) Supplier {
	cp := s
	cp.ContactEmail = cloneString(s.ContactEmail)
	cp.Phone = cloneString(s.Phone)
	cp.Notes = cloneString(s.Notes)
	return cp
}

// CloneStockItem returns a deep copy of s.
func CloneStockItem(s StockItem) StockItem {
	cp := s
	cp.TargetLevel = cloneDecimal(s.TargetLevel)
	cp.LastPurchasePrice = cloneDecimal(s.LastPurchasePrice)
	return cp
}

// CloneOrder returns a deep copy of o.
func CloneOrder(o Order) Order {
	cp := o
	cp.UpdatedAt = cloneTime(o.UpdatedAt)
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	if cp.Lines == nil {
		cp.Lines = []OrderLine{}
	}
	return cp
}

package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is stamped on every document written by this package.
const CurrentSchemaVersion = 1

// Document is the aggregate root holding the whole persisted state. Each
// collection keeps insertion order.
type Document struct {
	SchemaVersion int         `json:"SchemaVersion"`
	Users         []User      `json:"Users"`
	Suppliers     []Supplier  `json:"Suppliers"`
	Orders        []Order     `json:"Orders"`
	Stock         []StockItem `json:"Stock"`
}

// NewDocument returns an empty document at the current schema version.
func NewDocument() Document {
	return Document{
		SchemaVersion: CurrentSchemaVersion,
		Users:         []User{},
		Suppliers:     []Supplier{},
		Orders:        []Order{},
		Stock:         []StockItem{},
	}
}

// Clone returns a deep copy that shares no mutable state with d.
func (d Document) Clone() Document {
	cp := Document{
		SchemaVersion: d.SchemaVersion,
		Users:         make([]User, len(d.Users)),
		Suppliers:     make([]Supplier, len(d.Suppliers)),
		Orders:        make([]Order, len(d.Orders)),
		Stock:         make([]StockItem, len(d.Stock)),
	}
	for i, u := range d.Users {
		cp.Users[i] = CloneUser(u)
	}
	for i, s := range d.Suppliers {
		cp.Suppliers[i] = CloneSupplier(s)
	}
	for i, o := range d.Orders {
		cp.Orders[i] = CloneOrder(o)
	}
	for i, s := range d.Stock {
		cp.Stock[i] = CloneStockItem(s)
	}
	return cp
}

// Normalize fills nil collections and a missing schema version so a sparse
// but otherwise valid payload loads as an equivalent full document.
func (d *Document) Normalize() {
	if d.SchemaVersion == 0 {
		d.SchemaVersion = CurrentSchemaVersion
	}
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Suppliers == nil {
		d.Suppliers = []Supplier{}
	}
	if d.Orders == nil {
		d.Orders = []Order{}
	}
	if d.Stock == nil {
		d.Stock = []StockItem{}
	}
	for i := range d.Orders {
		if d.Orders[i].Lines == nil {
			d.Orders[i].Lines = []OrderLine{}
		}
	}
}

// Validate reports structural corruption: missing or duplicate ids and
// enum values outside their known sets. Referential integrity between
// collections is deliberately not checked here.
func (d Document) Validate() error {
	seen := make(map[uuid.UUID]struct{})
	check := func(entity EntityType, id uuid.UUID) error {
		if id == uuid.Nil {
			return fmt.Errorf("%s with empty id", entity)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate %s id %s", entity, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, u := range d.Users {
		if err := check(EntityUser, u.ID); err != nil {
			return err
		}
		if !u.Role.IsValid() {
			return fmt.Errorf("user %s has invalid role %q", u.ID, u.Role)
		}
	}
	clear(seen)
	for _, s := range d.Suppliers {
		if err := check(EntitySupplier, s.ID); err != nil {
			return err
		}
	}
	clear(seen)
	for _, s := range d.Stock {
		if err := check(EntityStockItem, s.ID); err != nil {
			return err
		}
	}
	clear(seen)
	for _, o := range d.Orders {
		if err := check(EntityOrder, o.ID); err != nil {
			return err
		}
		if !o.Status.IsValid() {
			return fmt.Errorf("order %s has invalid status %q", o.ID, o.Status)
		}
	}
	return nil
}

// FindUserByLogin matches logins case-insensitively.
func (d Document) FindUserByLogin(login string) (User, bool) {
	for _, u := range d.Users {
		if strings.EqualFold(u.Login, login) {
			return CloneUser(u), true
		}
	}
	return User{}, false
}

// FindSupplier looks up a supplier by id.
func (d Document) FindSupplier(id uuid.UUID) (Supplier, bool) {
	for _, s := range d.Suppliers {
		if s.ID == id {
			return CloneSupplier(s), true
		}
	}
	return Supplier{}, false
}

// FindStockItem looks up a stock item by id.
func (d Document) FindStockItem(id uuid.UUID) (StockItem, bool) {
	if i := d.StockIndex(id); i >= 0 {
		return CloneStockItem(d.Stock[i]), true
	}
	return StockItem{}, false
}

// FindOrder looks up an order by id.
func (d Document) FindOrder(id uuid.UUID) (Order, bool) {
	if i := d.OrderIndex(id); i >= 0 {
		return CloneOrder(d.Orders[i]), true
	}
	return Order{}, false
}

// StockIndex returns the position of the stock item in d.Stock or -1.
func (d Document) StockIndex(id uuid.UUID) int {
	for i := range d.Stock {
		if d.Stock[i].ID == id {
			return i
		}
	}
	return -1
}

// OrderIndex returns the position of the order in d.Orders or -1.
func (d Document) OrderIndex(id uuid.UUID) int {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

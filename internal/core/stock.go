package core

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"procurement/pkg/domain"
)

// SearchStock returns stock items whose name contains query ignoring case,
// sorted by name. A blank query matches everything.
func (s *Service) SearchStock(ctx context.Context, query string) ([]domain.StockItem, error) {
	var out []domain.StockItem
	err := s.run(ctx, "search_stock", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			out = filterByName(v.ListStockItems(), query, func(item domain.StockItem) string { return item.Name })
			return nil
		})
	})
	return out, err
}

// CreateStock adds a stock item with zero quantity on hand.
func (s *Service) CreateStock(ctx context.Context, name string, targetLevel, lastPrice *decimal.Decimal) (domain.StockItem, error) {
	var created domain.StockItem
	err := s.run(ctx, "create_stock", func(ctx context.Context) error {
		name = strings.TrimSpace(name)
		if err := validateInput(createStockInput{Name: name}); err != nil {
			return err
		}
		return s.transact(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateStockItem(domain.StockItem{
				Name:              name,
				QuantityOnHand:    decimal.Zero,
				TargetLevel:       copyDecimal(targetLevel),
				LastPurchasePrice: copyDecimal(lastPrice),
			})
			return err
		})
	})
	return created, err
}

// SetStockQuantity overwrites the quantity on hand. It returns false without
// saving when qty is negative or the item does not exist.
func (s *Service) SetStockQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (bool, error) {
	var found bool
	err := s.run(ctx, "set_stock_quantity", func(ctx context.Context) error {
		if qty.IsNegative() {
			return nil
		}
		return s.transact(ctx, func(tx Transaction) error {
			_, err := tx.UpdateStockItem(id, func(item *domain.StockItem) error {
				item.QuantityOnHand = qty
				return nil
			})
			var notFound domain.ErrNotFound
			if errors.As(err, &notFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// GetStock looks up a stock item by id.
func (s *Service) GetStock(ctx context.Context, id uuid.UUID) (domain.StockItem, bool, error) {
	var (
		item  domain.StockItem
		found bool
	)
	err := s.run(ctx, "get_stock", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			item, found = v.FindStockItem(id)
			return nil
		})
	})
	return item, found, err
}

// LowStock lists items below their target level, sorted by name.
func (s *Service) LowStock(ctx context.Context) ([]domain.StockItem, error) {
	var out []domain.StockItem
	err := s.run(ctx, "low_stock", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			for _, item := range v.ListStockItems() {
				if item.BelowTarget() {
					out = append(out, item)
				}
			}
			sortByName(out, func(item domain.StockItem) string { return item.Name })
			return nil
		})
	})
	return out, err
}

// filterByName keeps items whose name contains query ignoring case and sorts
// them by name. Ties keep insertion order.
func filterByName[T any](items []T, query string, name func(T) string) []T {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if needle == "" || strings.Contains(strings.ToLower(name(item)), needle) {
			out = append(out, item)
		}
	}
	sortByName(out, name)
	return out
}

// sortByName orders items with the root-locale collation: case and accents
// are secondary, lowercase before uppercase. Equal names keep their order.
func sortByName[T any](items []T, name func(T) string) {
	coll := collate.New(language.Und)
	sort.SliceStable(items, func(i, j int) bool { return coll.CompareString(name(items[i]), name(items[j])) < 0 })
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

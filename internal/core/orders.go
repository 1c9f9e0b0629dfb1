package core

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// OrderSort orders QueryOrders results by CreatedAt.
type OrderSort string

const (
	// SortCreatedDesc lists newest orders first. It is the default.
	SortCreatedDesc OrderSort = "created_desc"
	// SortCreatedAsc lists oldest orders first.
	SortCreatedAsc OrderSort = "created_asc"
)

// OrderQuery filters QueryOrders. Nil fields do not filter. From is
// inclusive, To is exclusive.
type OrderQuery struct {
	SupplierID  *uuid.UUID
	StockItemID *uuid.UUID
	Status      *domain.OrderStatus
	From        *time.Time
	To          *time.Time
	Sort        OrderSort
}

func (q OrderQuery) matches(o domain.Order) bool {
	if q.SupplierID != nil && o.SupplierID != *q.SupplierID {
		return false
	}
	if q.StockItemID != nil && !o.ContainsStockItem(*q.StockItemID) {
		return false
	}
	if q.Status != nil && o.Status != *q.Status {
		return false
	}
	if q.From != nil && o.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && !o.CreatedAt.Before(*q.To) {
		return false
	}
	return true
}

// QueryOrders filters orders and sorts them by creation time.
func (s *Service) QueryOrders(ctx context.Context, query OrderQuery) ([]domain.Order, error) {
	var out []domain.Order
	err := s.run(ctx, "query_orders", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			for _, o := range v.ListOrders() {
				if query.matches(o) {
					out = append(out, o)
				}
			}
			asc := query.Sort == SortCreatedAsc
			sort.SliceStable(out, func(i, j int) bool {
				if asc {
					return out[i].CreatedAt.Before(out[j].CreatedAt)
				}
				return out[i].CreatedAt.After(out[j].CreatedAt)
			})
			return nil
		})
	})
	return out, err
}

// GetOrder looks up an order by id.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, bool, error) {
	var (
		order domain.Order
		found bool
	)
	err := s.run(ctx, "get_order", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			order, found = v.FindOrder(id)
			return nil
		})
	})
	return order, found, err
}

// CreateOrder places an InProgress order with the supplier. The supplier and
// every referenced stock item must exist; nothing is appended otherwise.
func (s *Service) CreateOrder(ctx context.Context, supplierID uuid.UUID, lines []domain.OrderLine) (domain.Order, error) {
	var created domain.Order
	err := s.run(ctx, "create_order", func(ctx context.Context) error {
		input := createOrderInput{Lines: make([]orderLineInput, len(lines))}
		for i, line := range lines {
			input.Lines[i] = orderLineInput{Quantity: line.Quantity, UnitPrice: line.UnitPrice}
		}
		if err := validateInput(input); err != nil {
			return err
		}
		return s.transact(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindSupplier(supplierID); !ok {
				return pkgerrors.Validation("supplier not found").WithDetails(map[string]string{"supplier_id": supplierID.String()})
			}
			for _, line := range lines {
				if _, ok := view.FindStockItem(line.StockItemID); !ok {
					return pkgerrors.Validation("stock item not found").WithDetails(map[string]string{"stock_item_id": line.StockItemID.String()})
				}
			}
			var err error
			created, err = tx.CreateOrder(domain.Order{
				SupplierID: supplierID,
				Status:     domain.OrderStatusInProgress,
				Lines:      append([]domain.OrderLine(nil), lines...),
			})
			return err
		})
	})
	return created, err
}

// ChangeOrderStatus moves an order to status. It returns false when the order
// does not exist and true without saving when the order already has status.
// Completing an order adds each line's quantity to its stock item and records
// the line's unit price as the item's last purchase price; lines whose stock
// item no longer exists are skipped.
func (s *Service) ChangeOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (bool, error) {
	var found bool
	err := s.run(ctx, "change_order_status", func(ctx context.Context) error {
		if !status.IsValid() {
			return pkgerrors.Validation("invalid order status").WithDetails(map[string]string{"status": string(status)})
		}
		return s.transact(ctx, func(tx Transaction) error {
			order, ok := tx.Snapshot().FindOrder(id)
			if !ok {
				return nil
			}
			found = true
			if order.Status == status {
				return nil
			}
			if !order.Status.CanTransitionTo(status) {
				return pkgerrors.Validation("invalid status transition").WithDetails(map[string]string{
					"from": string(order.Status),
					"to":   string(status),
				})
			}
			if status == domain.OrderStatusCompleted {
				if err := receiveLines(tx, order.Lines); err != nil {
					return err
				}
			}
			_, err := tx.UpdateOrder(id, func(o *domain.Order) error {
				o.Status = status
				return nil
			})
			return err
		})
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// receiveLines applies the completion side effect in line order.
func receiveLines(tx Transaction, lines []domain.OrderLine) error {
	for _, line := range lines {
		_, err := tx.UpdateStockItem(line.StockItemID, func(item *domain.StockItem) error {
			item.QuantityOnHand = item.QuantityOnHand.Add(line.Quantity)
			price := line.UnitPrice
			item.LastPurchasePrice = &price
			return nil
		})
		var notFound domain.ErrNotFound
		if errors.As(err, &notFound) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

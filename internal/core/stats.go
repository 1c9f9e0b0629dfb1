package core

import (
	"context"

	"procurement/pkg/domain"
)

// Stats summarizes the committed document.
type Stats struct {
	Users          int
	Suppliers      int
	StockItems     int
	LowStockItems  int
	OrdersByStatus map[domain.OrderStatus]int
}

// Orders returns the total order count.
func (st Stats) Orders() int {
	total := 0
	for _, n := range st.OrdersByStatus {
		total += n
	}
	return total
}

// Stats counts entities in the committed document.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{OrdersByStatus: make(map[domain.OrderStatus]int)}
	err := s.run(ctx, "stats", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			stats.Users = len(v.ListUsers())
			stats.Suppliers = len(v.ListSuppliers())
			for _, item := range v.ListStockItems() {
				stats.StockItems++
				if item.BelowTarget() {
					stats.LowStockItems++
				}
			}
			for _, o := range v.ListOrders() {
				stats.OrdersByStatus[o.Status]++
			}
			return nil
		})
	})
	return stats, err
}

package core

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"procurement/pkg/domain"
)

// SearchSuppliers returns suppliers whose name contains name ignoring case,
// sorted by name. A blank name matches everything.
func (s *Service) SearchSuppliers(ctx context.Context, name string) ([]domain.Supplier, error) {
	var out []domain.Supplier
	err := s.run(ctx, "search_suppliers", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			out = filterByName(v.ListSuppliers(), name, func(sup domain.Supplier) string { return sup.Name })
			return nil
		})
	})
	return out, err
}

// CreateSupplier adds a supplier. Optional fields are trimmed; blank values are
// stored as absent.
func (s *Service) CreateSupplier(ctx context.Context, name string, email, phone, notes *string) (domain.Supplier, error) {
	var created domain.Supplier
	err := s.run(ctx, "create_supplier", func(ctx context.Context) error {
		name = strings.TrimSpace(name)
		if err := validateInput(createSupplierInput{Name: name}); err != nil {
			return err
		}
		return s.transact(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateSupplier(domain.Supplier{
				Name:         name,
				ContactEmail: optionalText(email),
				Phone:        optionalText(phone),
				Notes:        optionalText(notes),
			})
			return err
		})
	})
	return created, err
}

// GetSupplier looks up a supplier by id.
func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (domain.Supplier, bool, error) {
	var (
		sup   domain.Supplier
		found bool
	)
	err := s.run(ctx, "get_supplier", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			sup, found = v.FindSupplier(id)
			return nil
		})
	})
	return sup, found, err
}

func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

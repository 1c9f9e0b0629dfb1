package core

import (
	"context"
	"strings"

	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// Login returns the user whose login matches ignoring case and whose password
// matches exactly. The login is compared as given, surrounding spaces included.
func (s *Service) Login(ctx context.Context, login, password string) (domain.User, bool, error) {
	var (
		user  domain.User
		found bool
	)
	err := s.run(ctx, "login", func(ctx context.Context) error {
		return s.view(ctx, func(v TransactionView) error {
			candidate, ok := v.FindUserByLogin(login)
			if ok && candidate.Password == password {
				user, found = candidate, true
			}
			return nil
		})
	})
	return user, found, err
}

// CreateUser appends a user. Logins are stored trimmed and must be unique
// ignoring case.
func (s *Service) CreateUser(ctx context.Context, login, password string, role domain.Role) (domain.User, error) {
	var created domain.User
	err := s.run(ctx, "create_user", func(ctx context.Context) error {
		login = strings.TrimSpace(login)
		if err := validateInput(createUserInput{Login: login, Password: strings.TrimSpace(password), Role: role}); err != nil {
			return err
		}
		return s.transact(ctx, func(tx Transaction) error {
			if _, exists := tx.Snapshot().FindUserByLogin(login); exists {
				return pkgerrors.Validation("login already exists").WithDetails(map[string]string{"login": login})
			}
			var err error
			created, err = tx.CreateUser(domain.User{Login: login, Password: password, Role: role})
			return err
		})
	})
	return created, err
}

// Default accounts seeded into an empty document.
var defaultUsers = []domain.User{
	{Login: "admin", Password: "admin", Role: domain.RoleAdmin},
	{Login: "manager", Password: "manager", Role: domain.RoleManager},
}

// EnsureDefaultUsers seeds the default accounts when no user exists yet. It
// reports whether anything was created.
func (s *Service) EnsureDefaultUsers(ctx context.Context) (bool, error) {
	var seeded bool
	err := s.run(ctx, "ensure_default_users", func(ctx context.Context) error {
		return s.transact(ctx, func(tx Transaction) error {
			if len(tx.Snapshot().ListUsers()) > 0 {
				return nil
			}
			for _, u := range defaultUsers {
				if _, err := tx.CreateUser(u); err != nil {
					return err
				}
			}
			seeded = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}

package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountLookup resolves accounts for mapping checks.
type AccountLookup interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (accounts.Account, error)
}

// Service maintains the tenant scoped role to account mapping.
type Service struct {
	repo     Repository
	accounts AccountLookup
}

func NewService(repo Repository, lookup AccountLookup) *Service {
	return &Service{repo: repo, accounts: lookup}
}

// Set maps role to an account of the same tenant.
func (s *Service) Set(ctx context.Context, tenantID int64, role Role, accountID int64) (AccountMapping, error) {
	if !role.Valid() {
		return AccountMapping{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, role)
	}
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return AccountMapping{}, err
	}
	if acc.TenantID != tenantID {
		return AccountMapping{}, fmt.Errorf("%w: %d", shared.ErrAccountNotFound, accountID)
	}
	return s.repo.Upsert(ctx, AccountMapping{TenantID: tenantID, Role: role, AccountID: accountID})
}

// List returns the tenant's mappings.
func (s *Service) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	return s.repo.List(ctx, tenantID)
}

// Conventions resolves the given roles for the tenant, or every role when
// none are given. An unmapped role falls back to the active account carrying
// its conventional code and type, and that mapping is stored on first use.
// Roles that still have no account are reported together as
// ErrChartOfAccountsIncomplete.
func (s *Service) Conventions(ctx context.Context, tenantID int64, roles ...Role) (Conventions, error) {
	if len(roles) == 0 {
		roles = Roles
	}
	list, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return Conventions{}, err
	}
	byRole := make(map[Role]int64, len(list))
	for _, m := range list {
		byRole[m.Role] = m.AccountID
	}
	var missing []string
	for _, role := range roles {
		if !role.Valid() {
			return Conventions{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, role)
		}
		if byRole[role] != 0 {
			continue
		}
		m, ok, err := s.fallback(ctx, tenantID, role)
		if err != nil {
			return Conventions{}, err
		}
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", role, ConventionalCodes[role]))
			continue
		}
		byRole[role] = m.AccountID
	}
	if len(missing) > 0 {
		return Conventions{}, fmt.Errorf("%w: missing %s", shared.ErrChartOfAccountsIncomplete, strings.Join(missing, ", "))
	}
	conv := Conventions{TenantID: tenantID}
	for _, role := range roles {
		conv.set(role, byRole[role])
	}
	return conv, nil
}

// fallback maps role to the conventional account when the tenant has an
// active one of the expected type.
func (s *Service) fallback(ctx context.Context, tenantID int64, role Role) (AccountMapping, bool, error) {
	acc, err := s.accounts.GetByCode(ctx, tenantID, ConventionalCodes[role])
	if errors.Is(err, shared.ErrAccountNotFound) {
		return AccountMapping{}, false, nil
	}
	if err != nil {
		return AccountMapping{}, false, err
	}
	if !acc.IsActive || acc.Type != ConventionalTypes[role] {
		return AccountMapping{}, false, nil
	}
	m, err := s.repo.Upsert(ctx, AccountMapping{TenantID: tenantID, Role: role, AccountID: acc.ID})
	if err != nil {
		return AccountMapping{}, false, err
	}
	return m, true, nil
}

// SeedFromChart maps unmapped roles to the accounts carrying their
// conventional codes. Roles whose account is absent stay unmapped.
func (s *Service) SeedFromChart(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	list, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	mapped := make(map[Role]bool, len(list))
	for _, m := range list {
		mapped[m.Role] = true
	}
	var seeded []AccountMapping
	for _, role := range Roles {
		if mapped[role] {
			continue
		}
		m, ok, err := s.fallback(ctx, tenantID, role)
		if err != nil {
			return nil, err
		}
		if ok {
			seeded = append(seeded, m)
		}
	}
	return seeded, nil
}

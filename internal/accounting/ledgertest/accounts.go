package ledgertest

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type accountRepo struct {
	s *Store
}

func (r *accountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, r) })
}

func (r *accountRepo) Get(_ context.Context, id int64) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.data.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (r *accountRepo) GetByCode(_ context.Context, tenantID int64, code string) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.data.accounts {
		if acc.TenantID == tenantID && acc.Code == code {
			return acc, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

func (r *accountRepo) List(_ context.Context, tenantID int64, filter accounts.ListFilter) ([]accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listAccounts(tenantID, filter), nil
}

func (s *Store) listAccounts(tenantID int64, filter accounts.ListFilter) []accounts.Account {
	var out []accounts.Account
	for _, acc := range s.data.accounts {
		if acc.TenantID != tenantID || (filter.ActiveOnly && !acc.IsActive) {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, acc.Type) {
			continue
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func containsType(types []accounts.AccountType, t accounts.AccountType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (r *accountRepo) PostedTotals(_ context.Context, accountID int64, asOf *time.Time) (accounts.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.postedTotals(accountID, nil, asOf), nil
}

func (r *accountRepo) CodeExists(_ context.Context, tenantID int64, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.data.accounts {
		if acc.TenantID == tenantID && acc.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepo) NameExists(_ context.Context, tenantID int64, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.nameTaken(tenantID, name, excludeID), nil
}

func (s *Store) nameTaken(tenantID int64, name string, excludeID int64) bool {
	for _, acc := range s.data.accounts {
		if acc.TenantID == tenantID && acc.Name == name && acc.ID != excludeID {
			return true
		}
	}
	return false
}

func (r *accountRepo) Insert(_ context.Context, a accounts.Account) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.data.accounts {
		if acc.TenantID == a.TenantID && acc.Code == a.Code {
			return accounts.Account{}, shared.ErrDuplicateCode
		}
	}
	if r.s.nameTaken(a.TenantID, a.Name, 0) {
		return accounts.Account{}, shared.ErrDuplicateName
	}
	if a.ParentID != nil {
		if _, ok := r.s.data.accounts[*a.ParentID]; !ok {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
	}
	if a.CurrentBalance.IsZero() {
		a.CurrentBalance = decimal.Zero
	}
	a.ID = r.s.nextID()
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	r.s.data.accounts[a.ID] = a
	return a, nil
}

func (r *accountRepo) Update(_ context.Context, a accounts.Account) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.accounts[a.ID]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	if r.s.nameTaken(current.TenantID, a.Name, a.ID) {
		return accounts.Account{}, shared.ErrDuplicateName
	}
	current.Name = a.Name
	current.NameArabic = a.NameArabic
	current.ParentID = a.ParentID
	current.IsActive = a.IsActive
	current.AllowManualEntries = a.AllowManualEntries
	current.OpeningBalance = a.OpeningBalance
	current.OpeningSide = a.OpeningSide
	current.Description = a.Description
	current.UpdatedAt = r.s.now()
	r.s.data.accounts[a.ID] = current
	return current, nil
}

// Delete mirrors the RESTRICT foreign keys on lines, children, mappings and budgets.
func (r *accountRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.accounts[id]; !ok {
		return shared.ErrAccountNotFound
	}
	if r.s.accountReferenced(id) {
		return shared.ErrProtectedAccount
	}
	delete(r.s.data.accounts, id)
	return nil
}

func (s *Store) accountReferenced(id int64) bool {
	if s.hasLines(id) {
		return true
	}
	for _, acc := range s.data.accounts {
		if acc.ParentID != nil && *acc.ParentID == id {
			return true
		}
	}
	for _, m := range s.data.mappings {
		if m.AccountID == id {
			return true
		}
	}
	for _, b := range s.data.budgets {
		if b.AccountID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasLines(id int64) bool {
	for _, lines := range s.data.lines {
		for _, l := range lines {
			if l.AccountID == id {
				return true
			}
		}
	}
	return false
}

func (r *accountRepo) HasLines(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.hasLines(id), nil
}

func (r *accountRepo) UpdateCachedBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.setCachedBalance(id, balance)
}

func (s *Store) setCachedBalance(id int64, balance decimal.Decimal) error {
	acc, ok := s.data.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	acc.CurrentBalance = balance
	acc.UpdatedAt = s.now()
	s.data.accounts[id] = acc
	return nil
}

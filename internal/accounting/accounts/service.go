package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records chart of accounts changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service manages the chart of accounts and account balances.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the account service. audit may be nil.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// NormalizeName trims and NFC-normalises account names so visually equal
// names compare equal in the uniqueness check.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Create opens a new account for the tenant.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = NormalizeName(in.Name)
	in.NameArabic = NormalizeName(in.NameArabic)
	if in.OpeningSide == "" {
		in.OpeningSide = SideDebit
	}
	if err := validateCreate(in); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := insertAccount(ctx, tx, in)
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", created.ID, map[string]any{"code": created.Code, "tenant_id": created.TenantID})
	return created, nil
}

func validateCreate(in CreateAccountInput) error {
	switch {
	case in.TenantID == 0:
		return fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	case in.Code == "":
		return fmt.Errorf("%w: account code required", shared.ErrInvalidInput)
	case in.Name == "":
		return fmt.Errorf("%w: account name required", shared.ErrInvalidInput)
	case !in.Type.Valid():
		return fmt.Errorf("%w: unknown account type %q", shared.ErrInvalidInput, in.Type)
	case in.OpeningBalance.IsNegative():
		return fmt.Errorf("%w: opening balance cannot be negative", shared.ErrInvalidInput)
	case in.OpeningSide != SideDebit && in.OpeningSide != SideCredit:
		return fmt.Errorf("%w: unknown opening side %q", shared.ErrInvalidInput, in.OpeningSide)
	}
	return nil
}

func insertAccount(ctx context.Context, tx TxRepository, in CreateAccountInput) (Account, error) {
	exists, err := tx.CodeExists(ctx, in.TenantID, in.Code)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, in.Code)
	}
	exists, err = tx.NameExists(ctx, in.TenantID, in.Name, 0)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateName, in.Name)
	}
	if in.ParentID != nil {
		parent, err := tx.Get(ctx, *in.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.TenantID != in.TenantID {
			return Account{}, fmt.Errorf("%w: parent %d", shared.ErrAccountNotFound, *in.ParentID)
		}
	}
	opening := shared.Round2(in.OpeningBalance)
	return tx.Insert(ctx, Account{
		TenantID:           in.TenantID,
		Code:               in.Code,
		Name:               in.Name,
		NameArabic:         in.NameArabic,
		Type:               in.Type,
		ParentID:           in.ParentID,
		IsActive:           true,
		IsSystem:           in.IsSystem,
		AllowManualEntries: in.AllowManualEntries,
		OpeningBalance:     opening,
		OpeningSide:        in.OpeningSide,
		CurrentBalance:     ComputeBalance(in.Type, in.OpeningSide, opening, decimal.Zero, decimal.Zero),
		Description:        in.Description,
		CreatedBy:          in.ActorID,
	})
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode resolves an account by its tenant scoped code.
func (s *Service) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, tenantID, strings.TrimSpace(code))
}

// List returns the tenant's accounts ordered by code.
func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Account, error) {
	return s.repo.List(ctx, tenantID, filter)
}

// Tree returns the tenant's chart grouped by parent.
func (s *Service) Tree(ctx context.Context, tenantID int64) ([]*Node, error) {
	list, err := s.repo.List(ctx, tenantID, ListFilter{})
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

// Update replaces the mutable fields of an account and refreshes its cached balance.
func (s *Service) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	in.Name = NormalizeName(in.Name)
	in.NameArabic = NormalizeName(in.NameArabic)
	if in.Name == "" {
		return Account{}, fmt.Errorf("%w: account name required", shared.ErrInvalidInput)
	}
	if in.OpeningBalance.IsNegative() {
		return Account{}, fmt.Errorf("%w: opening balance cannot be negative", shared.ErrInvalidInput)
	}
	if in.OpeningSide == "" {
		in.OpeningSide = SideDebit
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Get(ctx, in.ID)
		if err != nil {
			return err
		}
		exists, err := tx.NameExists(ctx, current.TenantID, in.Name, current.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateName, in.Name)
		}
		if err := checkParent(ctx, tx, current, in.ParentID); err != nil {
			return err
		}
		current.Name = in.Name
		current.NameArabic = in.NameArabic
		current.ParentID = in.ParentID
		current.IsActive = in.IsActive
		current.AllowManualEntries = in.AllowManualEntries
		current.OpeningBalance = shared.Round2(in.OpeningBalance)
		current.OpeningSide = in.OpeningSide
		current.Description = in.Description
		acc, err := tx.Update(ctx, current)
		if err != nil {
			return err
		}
		balance, err := refresh(ctx, tx, acc)
		if err != nil {
			return err
		}
		acc.CurrentBalance = balance
		updated = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.update", updated.ID, map[string]any{"code": updated.Code})
	return updated, nil
}

// checkParent rejects foreign-tenant parents and parent chains that loop back to the account.
func checkParent(ctx context.Context, tx TxRepository, acc Account, parentID *int64) error {
	seen := map[int64]bool{acc.ID: true}
	for next := parentID; next != nil; {
		if seen[*next] {
			return fmt.Errorf("%w: account cannot be its own ancestor", shared.ErrInvalidInput)
		}
		seen[*next] = true
		parent, err := tx.Get(ctx, *next)
		if err != nil {
			return err
		}
		if parent.TenantID != acc.TenantID {
			return fmt.Errorf("%w: parent %d", shared.ErrAccountNotFound, *next)
		}
		next = parent.ParentID
	}
	return nil
}

// Delete removes an account. System accounts and accounts with journal lines are protected.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if acc.IsSystem {
			return fmt.Errorf("%w: %s is a system account", shared.ErrProtectedAccount, acc.Code)
		}
		used, err := tx.HasLines(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: %s has journal lines", shared.ErrProtectedAccount, acc.Code)
		}
		code = acc.Code
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.delete", id, map[string]any{"code": code})
	return nil
}

// GetBalance computes the ledger balance from posted lines, optionally up to asOf inclusive.
func (s *Service) GetBalance(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	acc, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	totals, err := s.repo.PostedTotals(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance(totals), nil
}

// RefreshCachedBalance recomputes and persists current_balance.
func (s *Service) RefreshCachedBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.Get(ctx, accountID)
		if err != nil {
			return err
		}
		balance, err = refresh(ctx, tx, acc)
		return err
	})
	return balance, err
}

// RefreshTenant recomputes every cached balance of the tenant and returns the
// accounts whose cache had drifted.
func (s *Service) RefreshTenant(ctx context.Context, tenantID int64) ([]Account, error) {
	var drifted []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		list, err := tx.List(ctx, tenantID, ListFilter{})
		if err != nil {
			return err
		}
		for _, acc := range list {
			balance, err := refresh(ctx, tx, acc)
			if err != nil {
				return err
			}
			if !balance.Equal(acc.CurrentBalance) {
				acc.CurrentBalance = balance
				drifted = append(drifted, acc)
			}
		}
		return nil
	})
	return drifted, err
}

func refresh(ctx context.Context, tx TxRepository, acc Account) (decimal.Decimal, error) {
	totals, err := tx.PostedTotals(ctx, acc.ID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	balance := acc.Balance(totals)
	if err := tx.UpdateCachedBalance(ctx, acc.ID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

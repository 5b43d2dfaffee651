package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Reader exposes account lookups usable inside and outside transactions.
type Reader interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	List(ctx context.Context, tenantID int64, filter ListFilter) ([]Account, error)
	PostedTotals(ctx context.Context, accountID int64, asOf *time.Time) (Totals, error)
}

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Reader
	CodeExists(ctx context.Context, tenantID int64, code string) (bool, error)
	NameExists(ctx context.Context, tenantID int64, name string, excludeID int64) (bool, error)
	Insert(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	Delete(ctx context.Context, id int64) error
	HasLines(ctx context.Context, id int64) (bool, error)
	UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	queries
	db *pgxpool.Pool
}

// NewRepository returns the Postgres backed account repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{queries: queries{q: db}, db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &queries{q: tx})
	})
}

type queries struct {
	q querier
}

const accountColumns = `id, tenant_id, code, name, name_ar, type, parent_id, is_active, is_system, allow_manual_entries,
opening_balance, opening_side, current_balance, description, COALESCE(created_by, 0), created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.NameArabic, &a.Type, &a.ParentID, &a.IsActive, &a.IsSystem,
		&a.AllowManualEntries, &a.OpeningBalance, &a.OpeningSide, &a.CurrentBalance, &a.Description, &a.CreatedBy,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *queries) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *queries) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	a, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *queries) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Account, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1`)
	args := []any{tenantID}
	if filter.ActiveOnly {
		sb.WriteString(` AND is_active`)
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		sb.WriteString(` AND type = ANY($2)`)
	}
	sb.WriteString(` ORDER BY code`)
	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) PostedTotals(ctx context.Context, accountID int64, asOf *time.Time) (Totals, error) {
	var t Totals
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id
WHERE l.account_id=$1 AND e.status='POSTED' AND ($2::date IS NULL OR e.date <= $2::date)`, accountID, asOf).
		Scan(&t.Debit, &t.Credit)
	return t, err
}

func (r *queries) CodeExists(ctx context.Context, tenantID int64, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE tenant_id=$1 AND code=$2)`, tenantID, code).Scan(&exists)
	return exists, err
}

func (r *queries) NameExists(ctx context.Context, tenantID int64, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE tenant_id=$1 AND name=$2 AND id<>$3)`, tenantID, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *queries) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, name_ar, type, parent_id, is_active, is_system,
allow_manual_entries, opening_balance, opening_side, current_balance, description, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		a.TenantID, a.Code, a.Name, a.NameArabic, a.Type, a.ParentID, a.IsActive, a.IsSystem, a.AllowManualEntries,
		a.OpeningBalance, a.OpeningSide, a.CurrentBalance, a.Description, nullInt(a.CreatedBy))
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, mapUniqueViolation(err)
	}
	return a, nil
}

func (r *queries) Update(ctx context.Context, a Account) (Account, error) {
	err := r.q.QueryRow(ctx, `UPDATE accounts SET name=$2, name_ar=$3, parent_id=$4, is_active=$5, allow_manual_entries=$6,
opening_balance=$7, opening_side=$8, description=$9, updated_at=NOW() WHERE id=$1 RETURNING updated_at`,
		a.ID, a.Name, a.NameArabic, a.ParentID, a.IsActive, a.AllowManualEntries, a.OpeningBalance, a.OpeningSide, a.Description).
		Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, mapUniqueViolation(err)
	}
	return a, nil
}

func (r *queries) Delete(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return shared.ErrProtectedAccount
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *queries) HasLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM journal_lines WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *queries) UpdateCachedBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx, `UPDATE accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_accounts_tenant_code":
		return shared.ErrDuplicateCode
	case "uq_accounts_tenant_name":
		return shared.ErrDuplicateName
	}
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

package budgets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository persists budget lines.
type Repository interface {
	Get(ctx context.Context, id int64) (BudgetLine, error)
	List(ctx context.Context, tenantID, fiscalYearID int64) ([]BudgetLine, error)
	Insert(ctx context.Context, line BudgetLine) (BudgetLine, error)
	UpdateActual(ctx context.Context, id int64, actual, variance decimal.Decimal, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres backed budget repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const lineColumns = `id, tenant_id, fiscal_year_id, account_id, budgeted_amount, actual_amount, variance, notes,
COALESCE(created_by, 0), created_at, updated_at`

func scanLine(row pgx.Row) (BudgetLine, error) {
	var l BudgetLine
	err := row.Scan(&l.ID, &l.TenantID, &l.FiscalYearID, &l.AccountID, &l.BudgetedAmount, &l.ActualAmount,
		&l.Variance, &l.Notes, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *repository) Get(ctx context.Context, id int64) (BudgetLine, error) {
	l, err := scanLine(r.db.QueryRow(ctx, `SELECT `+lineColumns+` FROM budget_lines WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetLine{}, fmt.Errorf("%w: %d", shared.ErrBudgetLineNotFound, id)
	}
	return l, err
}

func (r *repository) List(ctx context.Context, tenantID, fiscalYearID int64) ([]BudgetLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM budget_lines
WHERE tenant_id=$1 AND ($2::bigint = 0 OR fiscal_year_id=$2) ORDER BY fiscal_year_id, account_id`, tenantID, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, line BudgetLine) (BudgetLine, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO budget_lines (tenant_id, fiscal_year_id, account_id, budgeted_amount,
actual_amount, variance, notes, created_by) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		line.TenantID, line.FiscalYearID, line.AccountID, line.BudgetedAmount, line.ActualAmount, line.Variance,
		line.Notes, nullInt(line.CreatedBy)).Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_budget_lines_year_account" {
			return BudgetLine{}, shared.ErrDuplicateBudgetLine
		}
		return BudgetLine{}, err
	}
	return line, nil
}

func (r *repository) UpdateActual(ctx context.Context, id int64, actual, variance decimal.Decimal, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE budget_lines SET actual_amount=$2, variance=$3, updated_at=$4 WHERE id=$1`,
		id, actual, variance, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", shared.ErrBudgetLineNotFound, id)
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

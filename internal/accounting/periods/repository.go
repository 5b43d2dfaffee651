package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Reader exposes fiscal calendar lookups.
type Reader interface {
	GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error)
	ListFiscalYears(ctx context.Context, tenantID int64) ([]FiscalYear, error)
	ListPeriods(ctx context.Context, fiscalYearID int64) ([]Period, error)
	FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (FiscalYear, error)
}

// Repository encapsulates DB operations for the fiscal calendar.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Reader
	FiscalYearNameExists(ctx context.Context, tenantID int64, name string) (bool, error)
	InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	InsertPeriod(ctx context.Context, p Period) (Period, error)
	GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	CloseFiscalYear(ctx context.Context, id, actorID int64, at time.Time) error
	ClosePeriod(ctx context.Context, id, actorID int64, at time.Time) error
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

// NewRepository returns the Postgres backed calendar repository.
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

const fiscalYearColumns = `id, tenant_id, name, start_date, end_date, is_active, is_closed, closed_by, closed_at, created_at, updated_at`

const periodColumns = `id, fiscal_year_id, name, number, start_date, end_date, is_closed, closed_by, closed_at, created_at, updated_at`

func scanFiscalYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.TenantID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.IsActive, &fy.IsClosed, &fy.ClosedBy,
		&fy.ClosedAt, &fy.CreatedAt, &fy.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return fy, err
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.Number, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedBy,
		&p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.ErrPeriodNotFound
	}
	return p, err
}

func (r *queries) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return scanFiscalYear(r.q.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id=$1`, id))
}

func (r *queries) GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	return scanFiscalYear(r.q.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id=$1 FOR UPDATE`, id))
}

func (r *queries) ListFiscalYears(ctx context.Context, tenantID int64) ([]FiscalYear, error) {
	rows, err := r.q.Query(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE tenant_id=$1 ORDER BY start_date DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fy)
	}
	return out, rows.Err()
}

func (r *queries) FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.q.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years
WHERE tenant_id=$1 AND is_active AND $2::date BETWEEN start_date AND end_date ORDER BY start_date DESC LIMIT 1`, tenantID, date))
	if errors.Is(err, shared.ErrFiscalYearNotFound) {
		return FiscalYear{}, shared.ErrNoActiveFiscalYear
	}
	return fy, err
}

func (r *queries) ListPeriods(ctx context.Context, fiscalYearID int64) ([]Period, error) {
	rows, err := r.q.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE fiscal_year_id=$1 ORDER BY number`, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.q.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *queries) FiscalYearNameExists(ctx context.Context, tenantID int64, name string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM fiscal_years WHERE tenant_id=$1 AND name=$2)`, tenantID, name).Scan(&exists)
	return exists, err
}

func (r *queries) InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO fiscal_years (tenant_id, name, start_date, end_date, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, fy.TenantID, fy.Name, fy.StartDate, fy.EndDate, fy.IsActive).
		Scan(&fy.ID, &fy.CreatedAt, &fy.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_fiscal_years_tenant_name" {
			return FiscalYear{}, shared.ErrDuplicateFiscalYear
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *queries) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO accounting_periods (fiscal_year_id, name, number, start_date, end_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, p.FiscalYearID, p.Name, p.Number, p.StartDate, p.EndDate).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *queries) CloseFiscalYear(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE fiscal_years SET is_closed=TRUE, closed_by=$2, closed_at=$3, updated_at=NOW() WHERE id=$1`, id, nullInt(actorID), at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrFiscalYearNotFound
	}
	_, err = r.q.Exec(ctx, `UPDATE accounting_periods SET is_closed=TRUE, closed_by=$2, closed_at=$3, updated_at=NOW()
WHERE fiscal_year_id=$1 AND NOT is_closed`, id, nullInt(actorID), at)
	return err
}

func (r *queries) ClosePeriod(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE accounting_periods SET is_closed=TRUE, closed_by=$2, closed_at=$3, updated_at=NOW() WHERE id=$1`, id, nullInt(actorID), at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

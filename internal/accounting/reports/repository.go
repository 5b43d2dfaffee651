package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Repository loads posted ledger data for reports. Implementations read
// committed data only and never block writers.
type Repository interface {
	ListAccounts(ctx context.Context, tenantID int64, filter accounts.ListFilter) ([]accounts.Account, error)
	GetAccount(ctx context.Context, id int64) (accounts.Account, error)
	GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
	FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error)
	PostedTotalsByAccount(ctx context.Context, tenantID int64, from, to *time.Time) (map[int64]accounts.Totals, error)
	PostedLines(ctx context.Context, accountID int64, from, to *time.Time) ([]PostedLine, error)
	RecentEntries(ctx context.Context, tenantID int64, limit int) ([]EntrySummary, error)
}

type repository struct {
	db       *pgxpool.Pool
	accounts accounts.Repository
	calendar periods.Repository
}

// NewRepository returns the Postgres backed report repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db, accounts: accounts.NewRepository(db), calendar: periods.NewRepository(db)}
}

func (r *repository) ListAccounts(ctx context.Context, tenantID int64, filter accounts.ListFilter) ([]accounts.Account, error) {
	return r.accounts.List(ctx, tenantID, filter)
}

func (r *repository) GetAccount(ctx context.Context, id int64) (accounts.Account, error) {
	return r.accounts.Get(ctx, id)
}

func (r *repository) GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return r.calendar.GetFiscalYear(ctx, id)
}

func (r *repository) FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error) {
	return r.calendar.FindActiveFiscalYear(ctx, tenantID, date)
}

func (r *repository) PostedTotalsByAccount(ctx context.Context, tenantID int64, from, to *time.Time) (map[int64]accounts.Totals, error) {
	rows, err := r.db.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id
WHERE e.tenant_id=$1 AND e.status='POSTED'
  AND ($2::date IS NULL OR e.date >= $2::date)
  AND ($3::date IS NULL OR e.date <= $3::date)
GROUP BY l.account_id`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Totals)
	for rows.Next() {
		var id int64
		var t accounts.Totals
		if err := rows.Scan(&id, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, rows.Err()
}

func (r *repository) PostedLines(ctx context.Context, accountID int64, from, to *time.Time) ([]PostedLine, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date, COALESCE(NULLIF(l.description, ''), e.description), e.reference, l.debit, l.credit
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id
WHERE l.account_id=$1 AND e.status='POSTED'
  AND ($2::date IS NULL OR e.date >= $2::date)
  AND ($3::date IS NULL OR e.date <= $3::date)
ORDER BY e.date, e.number, l.line_number`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostedLine
	for rows.Next() {
		var l PostedLine
		if err := rows.Scan(&l.EntryID, &l.EntryNumber, &l.Date, &l.Description, &l.Reference, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) RecentEntries(ctx context.Context, tenantID int64, limit int) ([]EntrySummary, error) {
	rows, err := r.db.Query(ctx, `SELECT id, number, date, description, status, total_debit FROM journal_entries
WHERE tenant_id=$1 ORDER BY date DESC, number DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntrySummary
	for rows.Next() {
		var e EntrySummary
		if err := rows.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Status, &e.TotalDebit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

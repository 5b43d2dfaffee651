package journals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Reader exposes journal lookups.
type Reader interface {
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	FindBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error)
}

// Repository encapsulates DB operations for journals.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Calendar and
// account access is duplicated here so a posting sees one consistent snapshot.
type TxRepository interface {
	Reader
	NextSequence(ctx context.Context, prefix string) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	DeleteLines(ctx context.Context, entryID int64) error
	UpdateHeader(ctx context.Context, entry JournalEntry) error
	GetForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, id, actorID int64, at time.Time) error
	UpdateStatus(ctx context.Context, id int64, status JournalStatus) error
	DeleteEntry(ctx context.Context, id int64) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error

	GetFiscalYearForUpdate(ctx context.Context, id int64) (periods.FiscalYear, error)
	ListPeriods(ctx context.Context, fiscalYearID int64) ([]periods.Period, error)
	GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	PostedTotals(ctx context.Context, accountID int64) (accounts.Totals, error)
	UpdateCachedBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
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

// NewRepository returns the Postgres backed journal repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{queries: queries{q: db}, db: db}
}

// WithTx runs fn at ReadCommitted. Every write path locks the rows it depends
// on (fiscal year, accounts, the number counter) before reading them, and each
// statement after a lock wait sees the rows committed by the previous holder.
// A RepeatableRead snapshot taken before the wait would not.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &queries{q: tx})
	})
}

type queries struct {
	q querier
}

const entryColumns = `id, tenant_id, fiscal_year_id, number, date, reference, description, status, origin, billing_invoice_id,
payment_id, total_debit, total_credit, COALESCE(created_by, 0), posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.FiscalYearID, &e.Number, &e.Date, &e.Reference, &e.Description, &e.Status, &e.Origin,
		&e.BillingInvoiceID, &e.PaymentID, &e.TotalDebit, &e.TotalCredit, &e.CreatedBy, &e.PostedBy, &e.PostedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, err
}

func (r *queries) Get(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = r.lines(ctx, id)
	return entry, err
}

func (r *queries) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = r.lines(ctx, id)
	return entry, err
}

func (r *queries) lines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.q.Query(ctx, `SELECT id, journal_id, line_number, account_id, description, debit, credit, student_id
FROM journal_lines WHERE journal_id=$1 ORDER BY line_number`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalID, &l.LineNumber, &l.AccountID, &l.Description, &l.Debit, &l.Credit, &l.Refs.StudentID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *queries) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1`)
	args := []any{filter.TenantID}
	if filter.FiscalYearID != 0 {
		args = append(args, filter.FiscalYearID)
		sb.WriteString(` AND fiscal_year_id=$` + strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		sb.WriteString(` AND status=$` + strconv.Itoa(len(args)))
	}
	sb.WriteString(` ORDER BY date DESC, number DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args)))
	}
	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *queries) FindBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT je_id FROM source_links WHERE module=$1 AND ref_id=$2`, module, ref).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return r.Get(ctx, id)
}

// NextSequence increments the counter of prefix and returns the new value.
// Concurrent callers queue on the counter row until the holder's transaction
// ends, and a rolled back transaction gives its value back.
func (r *queries) NextSequence(ctx context.Context, prefix string) (int64, error) {
	var seq int64
	err := r.q.QueryRow(ctx, `INSERT INTO journal_number_sequences (prefix, last_value) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = journal_number_sequences.last_value + 1
RETURNING last_value`, prefix).Scan(&seq)
	return seq, err
}

func (r *queries) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, fiscal_year_id, number, date, reference, description, status,
origin, billing_invoice_id, payment_id, total_debit, total_credit, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
		e.TenantID, e.FiscalYearID, e.Number, e.Date, e.Reference, e.Description, e.Status, e.Origin, e.BillingInvoiceID,
		e.PaymentID, e.TotalDebit, e.TotalCredit, nullInt(e.CreatedBy)).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_entries_number" {
			return JournalEntry{}, fmt.Errorf("%w: %s", shared.ErrDuplicateEntryNumber, e.Number)
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *queries) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		line.JournalID = entryID
		if err := r.q.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, line_number, account_id, description, debit, credit, student_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, entryID, line.LineNumber, line.AccountID, line.Description, line.Debit, line.Credit,
			line.Refs.StudentID).Scan(&line.ID); err != nil {
			return nil, LineConstraintError(err, line)
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *queries) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM journal_lines WHERE journal_id=$1`, entryID)
	return err
}

func (r *queries) UpdateHeader(ctx context.Context, e JournalEntry) error {
	cmd, err := r.q.Exec(ctx, `UPDATE journal_entries SET date=$2, reference=$3, description=$4, total_debit=$5, total_credit=$6,
updated_at=NOW() WHERE id=$1 AND status='DRAFT'`, e.ID, e.Date, e.Reference, e.Description, e.TotalDebit, e.TotalCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *queries) MarkPosted(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$2, posted_at=$3, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, id, nullInt(actorID), at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *queries) UpdateStatus(ctx context.Context, id int64, status JournalStatus) error {
	cmd, err := r.q.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *queries) DeleteEntry(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1 AND status<>'POSTED'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *queries) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.q.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *queries) GetFiscalYearForUpdate(ctx context.Context, id int64) (periods.FiscalYear, error) {
	var fy periods.FiscalYear
	err := r.q.QueryRow(ctx, `SELECT id, tenant_id, name, start_date, end_date, is_active, is_closed, closed_by, closed_at, created_at, updated_at
FROM fiscal_years WHERE id=$1 FOR UPDATE`, id).
		Scan(&fy.ID, &fy.TenantID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.IsActive, &fy.IsClosed, &fy.ClosedBy, &fy.ClosedAt,
			&fy.CreatedAt, &fy.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
		}
		return periods.FiscalYear{}, err
	}
	return fy, nil
}

func (r *queries) ListPeriods(ctx context.Context, fiscalYearID int64) ([]periods.Period, error) {
	rows, err := r.q.Query(ctx, `SELECT id, fiscal_year_id, name, number, start_date, end_date, is_closed, closed_by, closed_at, created_at, updated_at
FROM accounting_periods WHERE fiscal_year_id=$1 ORDER BY number`, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []periods.Period
	for rows.Next() {
		var p periods.Period
		if err := rows.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.Number, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedBy,
			&p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetAccounts locks the touched accounts in id order so concurrent postings
// refresh their cached balances without deadlocking.
func (r *queries) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.q.Query(ctx, `SELECT id, tenant_id, code, name, type, is_active, allow_manual_entries, opening_balance, opening_side
FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.AllowManualEntries, &a.OpeningBalance, &a.OpeningSide); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *queries) PostedTotals(ctx context.Context, accountID int64) (accounts.Totals, error) {
	var t accounts.Totals
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id
WHERE l.account_id=$1 AND e.status='POSTED'`, accountID).Scan(&t.Debit, &t.Credit)
	return t, err
}

func (r *queries) UpdateCachedBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `UPDATE accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance)
	return err
}

// LineConstraintError maps a check violation on journal_lines to the
// validation error for line. Other errors pass through.
func LineConstraintError(err error, line JournalLine) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.ConstraintName {
	case "chk_journal_lines_debit_nonnegative", "chk_journal_lines_credit_nonnegative":
		return shared.NewValidationError(shared.ErrNegativeAmount, line.LineNumber, "")
	case "chk_journal_lines_one_side":
		return shared.NewValidationError(shared.ErrUnbalancedLine, line.LineNumber, "debit %s credit %s",
			line.Debit.StringFixed(2), line.Credit.StringFixed(2))
	}
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

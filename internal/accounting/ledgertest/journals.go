package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type journalRepo struct {
	s *Store
}

func (r *journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, r) })
}

func (s *Store) entry(id int64) (journals.JournalEntry, error) {
	e, ok := s.data.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	e.Lines = append([]journals.JournalLine(nil), s.data.lines[id]...)
	return e, nil
}

func (r *journalRepo) Get(_ context.Context, id int64) (journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.entry(id)
}

func (r *journalRepo) GetForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return r.Get(ctx, id)
}

func (r *journalRepo) List(_ context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []journals.JournalEntry
	for _, e := range r.s.data.entries {
		if e.TenantID != filter.TenantID {
			continue
		}
		if filter.FiscalYearID != 0 && e.FiscalYearID != filter.FiscalYearID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sortEntriesDesc(out)
	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[filter.Offset:end]
	}
	return out, nil
}

func sortEntriesDesc(list []journals.JournalEntry) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.After(list[j].Date)
		}
		return list[i].Number > list[j].Number
	})
}

func (r *journalRepo) FindBySource(_ context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.data.sources[sourceKey{module: module, ref: ref}]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return r.s.entry(id)
}

func (r *journalRepo) NextSequence(_ context.Context, prefix string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.counters[prefix]++
	return r.s.data.counters[prefix], nil
}

// SetSequence moves the numbering counter of prefix to last.
func (s *Store) SetSequence(prefix string, last int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.counters[prefix] = last
}

func (r *journalRepo) InsertEntry(_ context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.entries {
		if existing.Number == e.Number {
			return journals.JournalEntry{}, fmt.Errorf("%w: %s", shared.ErrDuplicateEntryNumber, e.Number)
		}
	}
	e.ID = r.s.nextID()
	e.CreatedAt = r.s.now()
	e.UpdatedAt = e.CreatedAt
	e.Lines = nil
	r.s.data.entries[e.ID] = e
	return e, nil
}

func (r *journalRepo) InsertLines(_ context.Context, entryID int64, lines []journals.JournalLine) ([]journals.JournalLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.entries[entryID]; !ok {
		return nil, shared.ErrJournalNotFound
	}
	for _, l := range lines {
		if name := violatedLineCheck(l); name != "" {
			return nil, journals.LineConstraintError(&pgconn.PgError{Code: "23514", ConstraintName: name}, l)
		}
	}
	out := make([]journals.JournalLine, 0, len(lines))
	for _, l := range lines {
		l.ID = r.s.nextID()
		l.JournalID = entryID
		out = append(out, l)
	}
	r.s.data.lines[entryID] = append(r.s.data.lines[entryID], out...)
	sort.SliceStable(r.s.data.lines[entryID], func(i, j int) bool {
		return r.s.data.lines[entryID][i].LineNumber < r.s.data.lines[entryID][j].LineNumber
	})
	return out, nil
}

// violatedLineCheck mirrors the check constraints on journal_lines.
func violatedLineCheck(l journals.JournalLine) string {
	switch {
	case l.Debit.IsNegative():
		return "chk_journal_lines_debit_nonnegative"
	case l.Credit.IsNegative():
		return "chk_journal_lines_credit_nonnegative"
	case l.Debit.IsPositive() == l.Credit.IsPositive():
		return "chk_journal_lines_one_side"
	}
	return ""
}

func (r *journalRepo) DeleteLines(_ context.Context, entryID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.lines, entryID)
	return nil
}

func (r *journalRepo) UpdateHeader(_ context.Context, e journals.JournalEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.entries[e.ID]
	if !ok || current.Status != journals.JournalStatusDraft {
		return shared.ErrJournalNotFound
	}
	current.Date = e.Date
	current.Reference = e.Reference
	current.Description = e.Description
	current.TotalDebit = e.TotalDebit
	current.TotalCredit = e.TotalCredit
	current.UpdatedAt = r.s.now()
	r.s.data.entries[e.ID] = current
	return nil
}

func (r *journalRepo) MarkPosted(_ context.Context, id, actorID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.entries[id]
	if !ok || current.Status != journals.JournalStatusDraft {
		return shared.ErrInvalidStatus
	}
	current.Status = journals.JournalStatusPosted
	current.PostedBy = actorPtr(actorID)
	current.PostedAt = &at
	current.UpdatedAt = r.s.now()
	r.s.data.entries[id] = current
	return nil
}

func (r *journalRepo) UpdateStatus(_ context.Context, id int64, status journals.JournalStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	current.Status = status
	current.UpdatedAt = r.s.now()
	r.s.data.entries[id] = current
	return nil
}

func (r *journalRepo) DeleteEntry(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.entries[id]
	if !ok || current.Status == journals.JournalStatusPosted {
		return shared.ErrJournalNotFound
	}
	delete(r.s.data.entries, id)
	delete(r.s.data.lines, id)
	for key, entryID := range r.s.data.sources {
		if entryID == id {
			delete(r.s.data.sources, key)
		}
	}
	return nil
}

func (r *journalRepo) LinkSource(_ context.Context, module string, ref uuid.UUID, entryID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := sourceKey{module: module, ref: ref}
	if _, ok := r.s.data.sources[key]; ok {
		return shared.ErrSourceConflict
	}
	r.s.data.sources[key] = entryID
	return nil
}

func (r *journalRepo) GetFiscalYearForUpdate(_ context.Context, id int64) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.fiscalYear(id)
}

func (r *journalRepo) ListPeriods(_ context.Context, fiscalYearID int64) ([]periods.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listPeriods(fiscalYearID), nil
}

func (r *journalRepo) GetAccounts(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if acc, ok := r.s.data.accounts[id]; ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (r *journalRepo) PostedTotals(_ context.Context, accountID int64) (accounts.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.postedTotals(accountID, nil, nil), nil
}

func (r *journalRepo) UpdateCachedBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.setCachedBalance(accountID, balance)
}

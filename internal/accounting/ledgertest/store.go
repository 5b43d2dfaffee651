// Package ledgertest provides an in-memory ledger store for service tests.
// Transactions are serialised and roll back to a snapshot on error.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type sourceKey struct {
	module string
	ref    uuid.UUID
}

type mappingKey struct {
	tenant int64
	role   mappings.Role
}

type state struct {
	seq      int64
	accounts map[int64]accounts.Account
	years    map[int64]periods.FiscalYear
	periods  map[int64]periods.Period
	entries  map[int64]journals.JournalEntry
	lines    map[int64][]journals.JournalLine
	sources  map[sourceKey]int64
	mappings map[mappingKey]mappings.AccountMapping
	budgets  map[int64]budgets.BudgetLine
	counters map[string]int64
	audit    []internalShared.AuditLog
}

func newState() state {
	return state{
		accounts: make(map[int64]accounts.Account),
		years:    make(map[int64]periods.FiscalYear),
		periods:  make(map[int64]periods.Period),
		entries:  make(map[int64]journals.JournalEntry),
		lines:    make(map[int64][]journals.JournalLine),
		sources:  make(map[sourceKey]int64),
		mappings: make(map[mappingKey]mappings.AccountMapping),
		budgets:  make(map[int64]budgets.BudgetLine),
		counters: make(map[string]int64),
	}
}

func (st state) clone() state {
	out := newState()
	out.seq = st.seq
	for k, v := range st.accounts {
		out.accounts[k] = v
	}
	for k, v := range st.years {
		out.years[k] = v
	}
	for k, v := range st.periods {
		out.periods[k] = v
	}
	for k, v := range st.entries {
		out.entries[k] = v
	}
	for k, v := range st.lines {
		out.lines[k] = append([]journals.JournalLine(nil), v...)
	}
	for k, v := range st.sources {
		out.sources[k] = v
	}
	for k, v := range st.mappings {
		out.mappings[k] = v
	}
	for k, v := range st.budgets {
		out.budgets[k] = v
	}
	for k, v := range st.counters {
		out.counters[k] = v
	}
	out.audit = append([]internalShared.AuditLog(nil), st.audit...)
	return out
}

// Store holds every ledger table in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

// Accounts returns the chart of accounts repository.
func (s *Store) Accounts() accounts.Repository { return &accountRepo{s: s} }

// Periods returns the fiscal calendar repository.
func (s *Store) Periods() periods.Repository { return &periodRepo{s: s} }

// Journals returns the journal repository.
func (s *Store) Journals() journals.Repository { return &journalRepo{s: s} }

// Mappings returns the account mapping repository.
func (s *Store) Mappings() mappings.Repository { return &mappingRepo{s: s} }

// Budgets returns the budget line repository.
func (s *Store) Budgets() budgets.Repository { return &budgetRepo{s: s} }

// Audit returns an audit sink shared by every service.
func (s *Store) Audit() *AuditSink { return &AuditSink{s: s} }

// withTx serialises fn against other transactions and restores the snapshot
// taken before fn when it fails.
func (s *Store) withTx(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()
	if err := fn(); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.data.seq++
	return s.data.seq
}

// postedTotals sums posted lines of an account with entry dates in [from, to].
// Caller holds mu.
func (s *Store) postedTotals(accountID int64, from, to *time.Time) accounts.Totals {
	totals := accounts.Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for id, entry := range s.data.entries {
		if entry.Status != journals.JournalStatusPosted || !inWindow(entry.Date, from, to) {
			continue
		}
		for _, l := range s.data.lines[id] {
			if l.AccountID != accountID {
				continue
			}
			totals.Debit = totals.Debit.Add(l.Debit)
			totals.Credit = totals.Credit.Add(l.Credit)
		}
	}
	return totals
}

func inWindow(date time.Time, from, to *time.Time) bool {
	d := shared.DateOnly(date)
	if from != nil && d.Before(shared.DateOnly(*from)) {
		return false
	}
	if to != nil && d.After(shared.DateOnly(*to)) {
		return false
	}
	return true
}

// AuditSink collects audit records in memory.
type AuditSink struct {
	s *Store
}

// Record appends the log entry.
func (a *AuditSink) Record(_ context.Context, log internalShared.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.data.audit = append(a.s.data.audit, log)
	return nil
}

// Actions returns recorded audit actions in order.
func (a *AuditSink) Actions() []string {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := make([]string, 0, len(a.s.data.audit))
	for _, log := range a.s.data.audit {
		out = append(out, log.Action)
	}
	return out
}

// EntryCount reports how many journal entries exist, whatever their status.
func (s *Store) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.entries)
}

// EntryNumbers returns all entry numbers in ascending order.
func (s *Store) EntryNumbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data.entries))
	for _, e := range s.data.entries {
		out = append(out, e.Number)
	}
	sort.Strings(out)
	return out
}

// SetCachedBalance overwrites an account's cached balance, simulating drift.
func (s *Store) SetCachedBalance(accountID int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.data.accounts[accountID]
	acc.CurrentBalance = balance
	s.data.accounts[accountID] = acc
}

var (
	_ accounts.TxRepository = (*accountRepo)(nil)
	_ periods.TxRepository  = (*periodRepo)(nil)
	_ journals.TxRepository = (*journalRepo)(nil)
	_ mappings.Repository   = (*mappingRepo)(nil)
	_ budgets.Repository    = (*budgetRepo)(nil)
)

package journals_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const tenant = int64(7)

var (
	start = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	day   = time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
)

type setup struct {
	f       *ledgertest.Fixture
	fy      periods.FiscalYear
	periods []periods.Period
	cash    accounts.Account
	revenue accounts.Account
}

func newSetup(t *testing.T) setup {
	t.Helper()
	f := ledgertest.NewFixture(func() time.Time { return day })
	fy, ps := f.OpenYear(t, tenant, "2025/2026", start, end)
	return setup{
		f:       f,
		fy:      fy,
		periods: ps,
		cash:    f.Account(t, tenant, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit),
		revenue: f.Account(t, tenant, "4000", "Revenue", accounts.AccountTypeRevenue, "", accounts.SideCredit),
	}
}

func (s setup) input(lines ...journals.LineInput) journals.CreateEntryInput {
	return journals.CreateEntryInput{
		TenantID:     tenant,
		FiscalYearID: s.fy.ID,
		Date:         day,
		Description:  "Uniform sale",
		Lines:        lines,
		ActorID:      3,
	}
}

type recorder struct {
	mu       sync.Mutex
	posted   map[string]int
	failures map[string]int
}

func (r *recorder) EntryPosted(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted[origin]++
}

func (r *recorder) ValidationFailed(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

func TestCreateEntryRejectsUnbalancedAndPersistsNothing(t *testing.T) {
	s := newSetup(t)
	rec := &recorder{posted: map[string]int{}, failures: map[string]int{}}
	s.f.Journals.WithRecorder(rec)

	_, err := s.f.Journals.CreateEntry(context.Background(), s.input(
		ledgertest.Line(s.cash.ID, "100", ""),
		ledgertest.Line(s.revenue.ID, "", "90"),
	))
	require.ErrorIs(t, err, shared.ErrEntryNotBalanced)
	assert.Equal(t, 0, s.f.Store.EntryCount())
	assert.Equal(t, 1, rec.failures["entry_not_balanced"])
}

func TestCreateDraftThenPost(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	entry, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "50", ""),
		ledgertest.Line(s.revenue.ID, "", "50"),
	))
	require.NoError(t, err)
	assert.Equal(t, journals.JournalStatusDraft, entry.Status)
	assert.Equal(t, "JE2025000001", entry.Number)
	assert.True(t, entry.TotalDebit.Equal(decimal.NewFromInt(50)))
	require.Len(t, entry.Lines, 2)

	cash, err := s.f.Accounts.Get(ctx, s.cash.ID)
	require.NoError(t, err)
	assert.True(t, cash.CurrentBalance.IsZero(), "drafts do not move balances")

	posted, err := s.f.Journals.Post(ctx, entry.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, journals.JournalStatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)

	cash, err = s.f.Accounts.Get(ctx, s.cash.ID)
	require.NoError(t, err)
	assert.True(t, cash.CurrentBalance.Equal(decimal.NewFromInt(50)))
	revenue, err := s.f.Accounts.Get(ctx, s.revenue.ID)
	require.NoError(t, err)
	assert.True(t, revenue.CurrentBalance.Equal(decimal.NewFromInt(50)))

	_, err = s.f.Journals.Post(ctx, entry.ID, 3)
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)
	assert.Contains(t, s.f.Audit.Actions(), "journal.post")
}

func TestPostedEntryIsImmutable(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	entry := s.f.Post(t, tenant, s.fy, day, ledgertest.Line(s.cash.ID, "20", ""), ledgertest.Line(s.revenue.ID, "", "20"))

	_, err := s.f.Journals.UpdateDraft(ctx, journals.UpdateDraftInput{
		EntryID: entry.ID,
		Date:    day,
		Lines:   []journals.LineInput{ledgertest.Line(s.cash.ID, "30", ""), ledgertest.Line(s.revenue.ID, "", "30")},
	})
	require.ErrorIs(t, err, shared.ErrPostedEntryImmutable)

	require.ErrorIs(t, s.f.Journals.DeleteDraft(ctx, entry.ID, 3), shared.ErrPostedEntryImmutable)

	_, err = s.f.Journals.Cancel(ctx, entry.ID, 3)
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)

	stored, err := s.f.Journals.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalDebit.Equal(decimal.NewFromInt(20)))
}

func TestUpdateDraftRevalidates(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	entry, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "10", ""),
		ledgertest.Line(s.revenue.ID, "", "10"),
	))
	require.NoError(t, err)

	_, err = s.f.Journals.UpdateDraft(ctx, journals.UpdateDraftInput{
		EntryID: entry.ID,
		Date:    day,
		Lines:   []journals.LineInput{ledgertest.Line(s.cash.ID, "30", ""), ledgertest.Line(s.revenue.ID, "", "20")},
	})
	require.ErrorIs(t, err, shared.ErrEntryNotBalanced)

	updated, err := s.f.Journals.UpdateDraft(ctx, journals.UpdateDraftInput{
		EntryID:     entry.ID,
		Date:        day.AddDate(0, 0, 1),
		Description: "Corrected",
		Lines:       []journals.LineInput{ledgertest.Line(s.cash.ID, "30", ""), ledgertest.Line(s.revenue.ID, "", "30")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Corrected", updated.Description)

	stored, err := s.f.Journals.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.True(t, stored.TotalCredit.Equal(decimal.NewFromInt(30)))
}

func TestCancelAndDeleteDrafts(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	first, err := s.f.Journals.CreateEntry(ctx, s.input(ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5")))
	require.NoError(t, err)
	second, err := s.f.Journals.CreateEntry(ctx, s.input(ledgertest.Line(s.cash.ID, "6", ""), ledgertest.Line(s.revenue.ID, "", "6")))
	require.NoError(t, err)

	cancelled, err := s.f.Journals.Cancel(ctx, first.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, journals.JournalStatusCancelled, cancelled.Status)
	_, err = s.f.Journals.Post(ctx, first.ID, 3)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	require.NoError(t, s.f.Journals.DeleteDraft(ctx, second.ID, 3))
	_, err = s.f.Journals.Get(ctx, second.ID)
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestCreateEntryCalendarRules(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	lines := []journals.LineInput{ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5")}

	in := s.input(lines...)
	in.Date = end.AddDate(0, 0, 1)
	_, err := s.f.Journals.CreateEntry(ctx, in)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)

	// October 2025 is the second period.
	_, err = s.f.Periods.ClosePeriod(ctx, s.periods[1].ID, 3)
	require.NoError(t, err)
	_, err = s.f.Journals.CreateEntry(ctx, s.input(lines...))
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	in = s.input(lines...)
	in.Date = time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	_, err = s.f.Journals.CreateEntry(ctx, in)
	require.NoError(t, err)

	_, err = s.f.Periods.CloseFiscalYear(ctx, s.fy.ID, 3)
	require.NoError(t, err)
	_, err = s.f.Journals.CreateEntry(ctx, in)
	require.ErrorIs(t, err, shared.ErrFiscalYearClosed)
	assert.Equal(t, 1, s.f.Store.EntryCount())
}

func TestCreateEntryManualRestriction(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	restricted, err := s.f.Accounts.Create(ctx, accounts.CreateAccountInput{
		TenantID: tenant, Code: "1200", Name: "Receivable", Type: accounts.AccountTypeAsset,
	})
	require.NoError(t, err)

	_, err = s.f.Journals.CreateEntry(ctx, s.input(ledgertest.Line(restricted.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5")))
	require.ErrorIs(t, err, shared.ErrManualEntryNotAllowed)

	in := s.input(ledgertest.Line(restricted.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5"))
	in.Origin = journals.OriginInvoice
	_, err = s.f.Journals.CreateEntry(ctx, in)
	require.NoError(t, err)
}

func TestCreateEntryRejectsForeignTenant(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	other := s.f.Account(t, 99, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)

	_, err := s.f.Journals.CreateEntry(ctx, s.input(ledgertest.Line(other.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5")))
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	in := s.input(ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5"))
	in.TenantID = 99
	_, err = s.f.Journals.CreateEntry(ctx, in)
	require.ErrorIs(t, err, shared.ErrFiscalYearNotFound)
}

func TestCreateEntrySourceLinkedOnce(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	src := &journals.Source{Module: "BILLING.INVOICE", Ref: uuid.NewSHA1(uuid.NameSpaceOID, []byte("INVOICE:1"))}

	in := s.input(ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5"))
	in.Source = src
	in.AutoPost = true
	first, err := s.f.Journals.CreateEntry(ctx, in)
	require.NoError(t, err)

	_, err = s.f.Journals.CreateEntry(ctx, in)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)

	found, err := s.f.Journals.FindBySource(ctx, src.Module, src.Ref)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, 1, s.f.Store.EntryCount())
}

func TestConcurrentCreateAllocatesDistinctNumbers(t *testing.T) {
	s := newSetup(t)
	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.f.Journals.CreateEntry(context.Background(), s.input(
				ledgertest.Line(s.cash.ID, "1", ""),
				ledgertest.Line(s.revenue.ID, "", "1"),
			))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	numbers := s.f.Store.EntryNumbers()
	require.Len(t, numbers, workers)
	for i, n := range numbers {
		want, err := journals.FormatNumber("JE2025", int64(i+1))
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestListRequiresTenant(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	_, err := s.f.Journals.List(ctx, journals.ListFilter{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	s.f.Post(t, tenant, s.fy, day, ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5"))
	list, err := s.f.Journals.List(ctx, journals.ListFilter{TenantID: tenant, Status: journals.JournalStatusPosted})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateEntryRejectsBadLinesBeforeWriting(t *testing.T) {
	cases := []struct {
		name string
		line func(s setup) journals.LineInput
		kind error
	}{
		{"both sides", func(s setup) journals.LineInput { return ledgertest.Line(s.cash.ID, "10", "10") }, shared.ErrUnbalancedLine},
		{"neither side", func(s setup) journals.LineInput { return ledgertest.Line(s.cash.ID, "", "") }, shared.ErrUnbalancedLine},
		{"negative debit", func(s setup) journals.LineInput { return ledgertest.Line(s.cash.ID, "-10", "") }, shared.ErrNegativeAmount},
		{"negative credit", func(s setup) journals.LineInput { return ledgertest.Line(s.cash.ID, "", "-10") }, shared.ErrNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSetup(t)
			ctx := context.Background()
			_, err := s.f.Journals.CreateEntry(ctx, s.input(
				ledgertest.Line(s.revenue.ID, "", "10"),
				tc.line(s),
			))
			require.ErrorIs(t, err, tc.kind)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 2, verr.Line)
			assert.Equal(t, 0, s.f.Store.EntryCount())

			entry, err := s.f.Journals.CreateEntry(ctx, s.input(
				ledgertest.Line(s.cash.ID, "10", ""),
				ledgertest.Line(s.revenue.ID, "", "10"),
			))
			require.NoError(t, err)
			assert.Equal(t, "JE2025000001", entry.Number, "rejected entries do not consume numbers")
		})
	}
}

func TestUpdateDraftRejectsBadLinesBeforeWriting(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	entry, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "10", ""),
		ledgertest.Line(s.revenue.ID, "", "10"),
	))
	require.NoError(t, err)

	_, err = s.f.Journals.UpdateDraft(ctx, journals.UpdateDraftInput{
		EntryID: entry.ID,
		Date:    day,
		Lines:   []journals.LineInput{ledgertest.Line(s.cash.ID, "10", "10"), ledgertest.Line(s.revenue.ID, "", "10")},
	})
	require.ErrorIs(t, err, shared.ErrUnbalancedLine)

	stored, err := s.f.Journals.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.True(t, stored.Lines[0].Credit.IsZero())
	assert.True(t, stored.TotalDebit.Equal(decimal.NewFromInt(10)))
}

func TestInsertLinesEnforcesLineChecks(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	entry, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "10", ""),
		ledgertest.Line(s.revenue.ID, "", "10"),
	))
	require.NoError(t, err)

	repo := s.f.Store.Journals()
	err = repo.WithTx(ctx, func(ctx context.Context, tx journals.TxRepository) error {
		_, err := tx.InsertLines(ctx, entry.ID, []journals.JournalLine{
			{LineNumber: 3, AccountID: s.cash.ID, Debit: decimal.NewFromInt(-1), Credit: decimal.Zero},
		})
		return err
	})
	require.ErrorIs(t, err, shared.ErrNegativeAmount)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Line)

	err = repo.WithTx(ctx, func(ctx context.Context, tx journals.TxRepository) error {
		_, err := tx.InsertLines(ctx, entry.ID, []journals.JournalLine{
			{LineNumber: 3, AccountID: s.cash.ID, Debit: decimal.NewFromInt(1), Credit: decimal.NewFromInt(1)},
		})
		return err
	})
	require.ErrorIs(t, err, shared.ErrUnbalancedLine)

	stored, err := s.f.Journals.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestCreateEntryNumberCollisionIsDuplicate(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	s.f.Post(t, tenant, s.fy, day, ledgertest.Line(s.cash.ID, "5", ""), ledgertest.Line(s.revenue.ID, "", "5"))

	s.f.Store.SetSequence("JE2025", 0)
	_, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "5", ""),
		ledgertest.Line(s.revenue.ID, "", "5"),
	))
	require.ErrorIs(t, err, shared.ErrDuplicateEntryNumber)
	assert.Equal(t, 1, s.f.Store.EntryCount())
}

func TestCreateEntrySequenceExhausted(t *testing.T) {
	s := newSetup(t)
	s.f.Store.SetSequence("JE2025", journals.MaxSequence)

	_, err := s.f.Journals.CreateEntry(context.Background(), s.input(
		ledgertest.Line(s.cash.ID, "5", ""),
		ledgertest.Line(s.revenue.ID, "", "5"),
	))
	require.ErrorIs(t, err, shared.ErrSequenceExhausted)
	assert.Equal(t, 0, s.f.Store.EntryCount())
}

type keyLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return func(context.Context) error { return nil }, nil
}

func TestCreateAndPostTakeFiscalYearLock(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	locker := &keyLocker{}
	s.f.Journals.WithLocker(locker)

	entry, err := s.f.Journals.CreateEntry(ctx, s.input(
		ledgertest.Line(s.cash.ID, "5", ""),
		ledgertest.Line(s.revenue.ID, "", "5"),
	))
	require.NoError(t, err)
	_, err = s.f.Journals.Post(ctx, entry.ID, 3)
	require.NoError(t, err)

	key := internalShared.FiscalYearLockKey(s.fy.ID)
	assert.Equal(t, []string{key, key}, locker.keys)
}

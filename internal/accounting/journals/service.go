package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Locker serialises entry creation for a fiscal year across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Recorder receives posting metrics.
type Recorder interface {
	EntryPosted(origin string)
	ValidationFailed(kind string)
}

type Service struct {
	repo     Repository
	audit    AuditPort
	locker   Locker
	recorder Recorder
	now      func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker installs a cross-process lock taken before the database transaction.
func (s *Service) WithLocker(locker Locker) {
	s.locker = locker
}

// WithRecorder installs a metrics sink.
func (s *Service) WithRecorder(recorder Recorder) {
	s.recorder = recorder
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	if filter.TenantID == 0 {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	}
	return s.repo.List(ctx, filter)
}

// FindBySource returns the entry linked to an external event.
func (s *Service) FindBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	return s.repo.FindBySource(ctx, module, ref)
}

// CreateEntry validates the entry against the locked fiscal year and
// accounts, allocates a number, stores the entry with its lines and
// optionally posts it, all inside one transaction. Nothing is written unless
// every rule passes, and any failure leaves nothing behind.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.Origin == "" {
		input.Origin = OriginManual
	}
	release, err := s.acquire(ctx, input.FiscalYearID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer release()

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetFiscalYearForUpdate(ctx, input.FiscalYearID)
		if err != nil {
			return err
		}
		if year.TenantID != input.TenantID {
			return fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, input.FiscalYearID)
		}
		candidate := JournalEntry{
			TenantID:         input.TenantID,
			FiscalYearID:     year.ID,
			Date:             shared.DateOnly(input.Date),
			Reference:        input.Reference,
			Description:      input.Description,
			Status:           JournalStatusDraft,
			Origin:           input.Origin,
			BillingInvoiceID: input.BillingInvoiceID,
			PaymentID:        input.PaymentID,
			CreatedBy:        input.ActorID,
			Lines:            toLines(input.Lines),
		}
		candidate.TotalDebit, candidate.TotalCredit = Totals(candidate.Lines)
		accs, err := s.check(ctx, tx, candidate, year)
		if err != nil {
			return err
		}
		candidate.Number, err = s.nextNumber(ctx, tx, NumberPrefix(year))
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, candidate)
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, candidate.Lines)
		if err != nil {
			return err
		}
		if input.Source != nil {
			if err := tx.LinkSource(ctx, input.Source.Module, input.Source.Ref, inserted.ID); err != nil {
				if errors.Is(err, shared.ErrSourceConflict) {
					return shared.ErrSourceAlreadyLinked
				}
				return err
			}
		}
		if input.AutoPost {
			if err := s.markPosted(ctx, tx, &inserted, accs, input.ActorID); err != nil {
				return err
			}
		}
		entry = inserted
		return nil
	})
	if err != nil {
		s.observeFailure(err)
		return JournalEntry{}, err
	}
	meta := map[string]any{
		"number": entry.Number,
		"origin": string(entry.Origin),
		"status": string(entry.Status),
	}
	if input.Source != nil {
		meta["source_module"] = input.Source.Module
		meta["source_id"] = input.Source.Ref.String()
	}
	s.record(ctx, input.ActorID, "journal.create", entry.ID, meta)
	if entry.Status == JournalStatusPosted {
		s.posted(ctx, entry, input.ActorID)
	}
	return entry, nil
}

// Post transitions a draft entry to Posted after re-running validation and
// refreshes the cached balance of every account it touches.
func (s *Service) Post(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	head, err := s.repo.Get(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	release, err := s.acquire(ctx, head.FiscalYearID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer release()

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusPosted:
			return fmt.Errorf("%w: %s", shared.ErrAlreadyPosted, current.Number)
		case JournalStatusCancelled:
			return fmt.Errorf("%w: %s is cancelled", shared.ErrInvalidStatus, current.Number)
		}
		year, err := tx.GetFiscalYearForUpdate(ctx, current.FiscalYearID)
		if err != nil {
			return err
		}
		accs, err := s.check(ctx, tx, current, year)
		if err != nil {
			return err
		}
		if err := s.markPosted(ctx, tx, &current, accs, actorID); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		s.observeFailure(err)
		return JournalEntry{}, err
	}
	s.posted(ctx, entry, actorID)
	return entry, nil
}

func (s *Service) markPosted(ctx context.Context, tx TxRepository, entry *JournalEntry, accs map[int64]accounts.Account, actorID int64) error {
	at := s.now()
	if err := tx.MarkPosted(ctx, entry.ID, actorID, at); err != nil {
		return err
	}
	entry.Status = JournalStatusPosted
	entry.PostedAt = &at
	if actorID != 0 {
		entry.PostedBy = &actorID
	}
	for _, id := range AccountIDs(entry.Lines) {
		totals, err := tx.PostedTotals(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateCachedBalance(ctx, id, accs[id].Balance(totals)); err != nil {
			return err
		}
	}
	return nil
}

// Cancel moves a draft entry to Cancelled.
func (s *Service) Cancel(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusPosted:
			return fmt.Errorf("%w: %s", shared.ErrAlreadyPosted, current.Number)
		case JournalStatusCancelled:
			return fmt.Errorf("%w: %s is cancelled", shared.ErrInvalidStatus, current.Number)
		}
		if err := tx.UpdateStatus(ctx, current.ID, JournalStatusCancelled); err != nil {
			return err
		}
		current.Status = JournalStatusCancelled
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.cancel", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// UpdateDraft replaces the header fields and lines of a draft entry and
// re-validates it. Posted entries are immutable.
func (s *Service) UpdateDraft(ctx context.Context, input UpdateDraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusPosted:
			return shared.NewValidationError(shared.ErrPostedEntryImmutable, 0, "entry %s", current.Number)
		case JournalStatusCancelled:
			return fmt.Errorf("%w: %s is cancelled", shared.ErrInvalidStatus, current.Number)
		}
		current.Date = shared.DateOnly(input.Date)
		current.Description = input.Description
		current.Reference = input.Reference
		current.Lines = toLines(input.Lines)
		current.TotalDebit, current.TotalCredit = Totals(current.Lines)
		year, err := tx.GetFiscalYearForUpdate(ctx, current.FiscalYearID)
		if err != nil {
			return err
		}
		if _, err := s.check(ctx, tx, current, year); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, current.ID); err != nil {
			return err
		}
		current.Lines, err = tx.InsertLines(ctx, current.ID, current.Lines)
		if err != nil {
			return err
		}
		if err := tx.UpdateHeader(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		s.observeFailure(err)
		return JournalEntry{}, err
	}
	s.record(ctx, input.ActorID, "journal.update", entry.ID, map[string]any{"number": entry.Number, "lines": len(entry.Lines)})
	return entry, nil
}

// DeleteDraft removes a draft entry and its lines.
func (s *Service) DeleteDraft(ctx context.Context, entryID, actorID int64) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusPosted:
			return shared.NewValidationError(shared.ErrPostedEntryImmutable, 0, "entry %s", current.Number)
		case JournalStatusCancelled:
			return fmt.Errorf("%w: %s is cancelled", shared.ErrInvalidStatus, current.Number)
		}
		number = current.Number
		return tx.DeleteEntry(ctx, current.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "journal.delete", entryID, map[string]any{"number": number})
	return nil
}

// check loads the calendar and the accounts the entry touches, locking the
// accounts, and applies Validate.
func (s *Service) check(ctx context.Context, tx TxRepository, entry JournalEntry, year periods.FiscalYear) (map[int64]accounts.Account, error) {
	calendar, err := tx.ListPeriods(ctx, year.ID)
	if err != nil {
		return nil, err
	}
	accs, err := tx.GetAccounts(ctx, AccountIDs(entry.Lines))
	if err != nil {
		return nil, err
	}
	if err := Validate(entry, accs, year, calendar); err != nil {
		return nil, err
	}
	return accs, nil
}

func (s *Service) nextNumber(ctx context.Context, tx TxRepository, prefix string) (string, error) {
	seq, err := tx.NextSequence(ctx, prefix)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, seq)
}

func (s *Service) acquire(ctx context.Context, fiscalYearID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, internalShared.FiscalYearLockKey(fiscalYearID))
	if err != nil {
		return nil, err
	}
	return func() { _ = release(context.WithoutCancel(ctx)) }, nil
}

func (s *Service) posted(ctx context.Context, entry JournalEntry, actorID int64) {
	if s.recorder != nil {
		s.recorder.EntryPosted(string(entry.Origin))
	}
	s.record(ctx, actorID, "journal.post", entry.ID, map[string]any{
		"number":       entry.Number,
		"total_debit":  entry.TotalDebit.StringFixed(2),
		"total_credit": entry.TotalCredit.StringFixed(2),
	})
}

func (s *Service) observeFailure(err error) {
	if s.recorder == nil {
		return
	}
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrFiscalYearClosed) || errors.Is(err, shared.ErrPeriodClosed) {
		s.recorder.ValidationFailed(shared.KindOf(err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

package periods

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records calendar changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service manages fiscal years and their accounting periods.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the calendar service. audit may be nil.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFiscalYear opens a fiscal year and, when requested, its monthly periods.
func (s *Service) CreateFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, []Period, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == 0 || in.Name == "" {
		return FiscalYear{}, nil, fmt.Errorf("%w: tenant and name required", shared.ErrInvalidInput)
	}
	start, end := shared.DateOnly(in.StartDate), shared.DateOnly(in.EndDate)
	if !start.Before(end) {
		return FiscalYear{}, nil, fmt.Errorf("%w: %s >= %s", shared.ErrInvalidDateRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	var (
		year    FiscalYear
		created []Period
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.FiscalYearNameExists(ctx, in.TenantID, in.Name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateFiscalYear, in.Name)
		}
		year, err = tx.InsertFiscalYear(ctx, FiscalYear{
			TenantID:  in.TenantID,
			Name:      in.Name,
			StartDate: start,
			EndDate:   end,
			IsActive:  in.IsActive,
		})
		if err != nil {
			return err
		}
		if !in.GeneratePeriods {
			return nil
		}
		for _, p := range MonthlyPeriods(start, end) {
			p.FiscalYearID = year.ID
			inserted, err := tx.InsertPeriod(ctx, p)
			if err != nil {
				return err
			}
			created = append(created, inserted)
		}
		return nil
	})
	if err != nil {
		return FiscalYear{}, nil, err
	}
	s.record(ctx, in.ActorID, "fiscal_year.create", "fiscal_year", year.ID, map[string]any{"name": year.Name, "periods": len(created)})
	return year, created, nil
}

// GetFiscalYear returns a single fiscal year.
func (s *Service) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.GetFiscalYear(ctx, id)
}

// ListFiscalYears returns the tenant's years, newest first.
func (s *Service) ListFiscalYears(ctx context.Context, tenantID int64) ([]FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx, tenantID)
}

// ListPeriods returns the periods of a fiscal year ordered by number.
func (s *Service) ListPeriods(ctx context.Context, fiscalYearID int64) ([]Period, error) {
	return s.repo.ListPeriods(ctx, fiscalYearID)
}

// FindActiveFiscalYear returns the active year whose range contains date.
func (s *Service) FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (FiscalYear, error) {
	return s.repo.FindActiveFiscalYear(ctx, tenantID, shared.DateOnly(date))
}

// CloseFiscalYear marks the year and all of its open periods closed.
func (s *Service) CloseFiscalYear(ctx context.Context, id, actorID int64) (FiscalYear, error) {
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetFiscalYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return shared.ErrFiscalYearClosed
		}
		at := s.now()
		if err := tx.CloseFiscalYear(ctx, id, actorID, at); err != nil {
			return err
		}
		current.IsClosed = true
		current.ClosedAt = &at
		if actorID != 0 {
			current.ClosedBy = &actorID
		}
		year = current
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actorID, "fiscal_year.close", "fiscal_year", year.ID, map[string]any{"name": year.Name})
	return year, nil
}

// ClosePeriod closes a single accounting period.
func (s *Service) ClosePeriod(ctx context.Context, periodID, actorID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return shared.ErrPeriodClosed
		}
		at := s.now()
		if err := tx.ClosePeriod(ctx, periodID, actorID, at); err != nil {
			return err
		}
		current.IsClosed = true
		current.ClosedAt = &at
		if actorID != 0 {
			current.ClosedBy = &actorID
		}
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, actorID, "period.close", "accounting_period", period.ID, map[string]any{"number": period.Number})
	return period, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

package ledgertest

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type periodRepo struct {
	s *Store
}

func (r *periodRepo) WithTx(ctx context.Context, fn func(context.Context, periods.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, r) })
}

func (r *periodRepo) GetFiscalYear(_ context.Context, id int64) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.fiscalYear(id)
}

func (s *Store) fiscalYear(id int64) (periods.FiscalYear, error) {
	fy, ok := s.data.years[id]
	if !ok {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return fy, nil
}

func (r *periodRepo) GetFiscalYearForUpdate(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return r.GetFiscalYear(ctx, id)
}

func (r *periodRepo) ListFiscalYears(_ context.Context, tenantID int64) ([]periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []periods.FiscalYear
	for _, fy := range r.s.data.years {
		if fy.TenantID == tenantID {
			out = append(out, fy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *periodRepo) ListPeriods(_ context.Context, fiscalYearID int64) ([]periods.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listPeriods(fiscalYearID), nil
}

func (s *Store) listPeriods(fiscalYearID int64) []periods.Period {
	var out []periods.Period
	for _, p := range s.data.periods {
		if p.FiscalYearID == fiscalYearID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r *periodRepo) FindActiveFiscalYear(_ context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.activeFiscalYear(tenantID, date)
}

func (s *Store) activeFiscalYear(tenantID int64, date time.Time) (periods.FiscalYear, error) {
	var found *periods.FiscalYear
	for _, fy := range s.data.years {
		if fy.TenantID != tenantID || !fy.IsActive || !shared.Within(date, fy.StartDate, fy.EndDate) {
			continue
		}
		if found == nil || fy.StartDate.After(found.StartDate) {
			candidate := fy
			found = &candidate
		}
	}
	if found == nil {
		return periods.FiscalYear{}, shared.ErrNoActiveFiscalYear
	}
	return *found, nil
}

func (r *periodRepo) GetPeriodForUpdate(_ context.Context, id int64) (periods.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.periods[id]
	if !ok {
		return periods.Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (r *periodRepo) FiscalYearNameExists(_ context.Context, tenantID int64, name string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.fiscalYearNameTaken(tenantID, name), nil
}

func (s *Store) fiscalYearNameTaken(tenantID int64, name string) bool {
	for _, fy := range s.data.years {
		if fy.TenantID == tenantID && fy.Name == name {
			return true
		}
	}
	return false
}

func (r *periodRepo) InsertFiscalYear(_ context.Context, fy periods.FiscalYear) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.fiscalYearNameTaken(fy.TenantID, fy.Name) {
		return periods.FiscalYear{}, shared.ErrDuplicateFiscalYear
	}
	fy.ID = r.s.nextID()
	fy.CreatedAt = r.s.now()
	fy.UpdatedAt = fy.CreatedAt
	r.s.data.years[fy.ID] = fy
	return fy, nil
}

func (r *periodRepo) InsertPeriod(_ context.Context, p periods.Period) (periods.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.years[p.FiscalYearID]; !ok {
		return periods.Period{}, shared.ErrFiscalYearNotFound
	}
	p.ID = r.s.nextID()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.data.periods[p.ID] = p
	return p, nil
}

func (r *periodRepo) CloseFiscalYear(_ context.Context, id, actorID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fy, ok := r.s.data.years[id]
	if !ok {
		return shared.ErrFiscalYearNotFound
	}
	fy.IsClosed = true
	fy.ClosedBy = actorPtr(actorID)
	fy.ClosedAt = &at
	fy.UpdatedAt = r.s.now()
	r.s.data.years[id] = fy
	for pid, p := range r.s.data.periods {
		if p.FiscalYearID != id || p.IsClosed {
			continue
		}
		p.IsClosed = true
		p.ClosedBy = actorPtr(actorID)
		p.ClosedAt = &at
		r.s.data.periods[pid] = p
	}
	return nil
}

func (r *periodRepo) ClosePeriod(_ context.Context, id, actorID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.periods[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	p.IsClosed = true
	p.ClosedBy = actorPtr(actorID)
	p.ClosedAt = &at
	p.UpdatedAt = r.s.now()
	r.s.data.periods[id] = p
	return nil
}

func actorPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

package periods

import "time"

// FiscalYear bounds the ledger of one tenant for a reporting year.
type FiscalYear struct {
	ID        int64      `json:"id"`
	TenantID  int64      `json:"tenant_id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	IsActive  bool       `json:"is_active"`
	IsClosed  bool       `json:"is_closed"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether date falls inside the year, bounds inclusive.
func (fy FiscalYear) Contains(date time.Time) bool {
	return within(date, fy.StartDate, fy.EndDate)
}

// Period represents an accounting period numbered 1..N within its year.
type Period struct {
	ID           int64      `json:"id"`
	FiscalYearID int64      `json:"fiscal_year_id"`
	Name         string     `json:"name"`
	Number       int        `json:"number"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	IsClosed     bool       `json:"is_closed"`
	ClosedBy     *int64     `json:"closed_by,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Contains reports whether date falls inside the period, bounds inclusive.
func (p Period) Contains(date time.Time) bool {
	return within(date, p.StartDate, p.EndDate)
}

// CreateFiscalYearInput carries the fields accepted when opening a year.
type CreateFiscalYearInput struct {
	TenantID        int64
	Name            string
	StartDate       time.Time
	EndDate         time.Time
	IsActive        bool
	GeneratePeriods bool
	ActorID         int64
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ErrIntegrityViolation reports ledger data that breaks double-entry rules.
var ErrIntegrityViolation = errors.New("ledger integrity violation")

// BalanceRefresher recomputes cached balances and reports drift.
type BalanceRefresher interface {
	RefreshTenant(ctx context.Context, tenantID int64) ([]accounts.Account, error)
}

// CalendarLookup resolves the fiscal year covering a date.
type CalendarLookup interface {
	FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error)
}

// TrialBalancer builds trial balances.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, tenantID, fiscalYearID int64, asOf *time.Time) (reports.TrialBalance, error)
}

// IntegrityJob verifies that posted entries balance, that the active year's
// trial balance balances, and that cached balances match posted lines.
// Drifted caches are corrected in place.
type IntegrityJob struct {
	Directory Directory
	Balances  BalanceRefresher
	Calendar  CalendarLookup
	Reports   TrialBalancer
	Locker    TenantLocker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewIntegrityJob constructs the integrity job handler.
func NewIntegrityJob(dir Directory, balances BalanceRefresher, calendar CalendarLookup, tb TrialBalancer,
	locker TenantLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Directory: dir,
		Balances:  balances,
		Calendar:  calendar,
		Reports:   tb,
		Locker:    locker,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock for testing.
func (j *IntegrityJob) WithClock(clock func() time.Time) {
	if clock != nil {
		j.clock = clock
	}
}

// Handle executes the integrity check.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Directory == nil || j.Balances == nil {
		return errors.New("ledger integrity: dependencies not configured")
	}
	var payload TenantPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	var violations []string
	err := forEachTenant(ctx, j.Directory, j.Locker, j.logger(), TaskLedgerIntegrity, payload.TenantID,
		func(ctx context.Context, tenantID int64) error {
			found, err := j.check(ctx, tenantID)
			violations = append(violations, found...)
			return err
		})
	if err == nil && len(violations) > 0 {
		err = fmt.Errorf("%w: %v (%w)", ErrIntegrityViolation, violations, asynq.SkipRetry)
	}
	return tracker.End(err)
}

func (j *IntegrityJob) check(ctx context.Context, tenantID int64) ([]string, error) {
	log := j.logger().With(slog.Int64("tenant_id", tenantID))
	var violations []string

	unbalanced, err := j.Directory.UnbalancedPostedEntries(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, number := range unbalanced {
		log.Error("posted entry does not balance", slog.String("entry", number))
		violations = append(violations, fmt.Sprintf("tenant %d entry %s unbalanced", tenantID, number))
	}

	if j.Calendar != nil && j.Reports != nil {
		fy, err := j.Calendar.FindActiveFiscalYear(ctx, tenantID, shared.DateOnly(j.clock()))
		switch {
		case errors.Is(err, shared.ErrNoActiveFiscalYear):
			log.Debug("no active fiscal year, trial balance skipped")
		case err != nil:
			return violations, err
		default:
			tb, err := j.Reports.TrialBalance(ctx, tenantID, fy.ID, nil)
			if err != nil {
				return violations, err
			}
			if !tb.IsBalanced {
				log.Error("trial balance does not balance", slog.Int64("fiscal_year_id", fy.ID),
					slog.String("debit", tb.TotalDebit.String()), slog.String("credit", tb.TotalCredit.String()))
				violations = append(violations, fmt.Sprintf("tenant %d fiscal year %s trial balance off", tenantID, fy.Name))
			}
		}
	}

	drifted, err := j.Balances.RefreshTenant(ctx, tenantID)
	if err != nil {
		return violations, err
	}
	j.Metrics.SetBalanceDrift(tenantID, len(drifted))
	for _, acc := range drifted {
		log.Warn("cached balance drift corrected", slog.String("account", acc.Code),
			slog.String("balance", acc.CurrentBalance.String()))
	}
	return violations, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

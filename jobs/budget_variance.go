package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BudgetRunner recalculates budget actuals and builds variance reports.
type BudgetRunner interface {
	RecalculateFiscalYear(ctx context.Context, tenantID, fiscalYearID int64) ([]budgets.BudgetLine, error)
	VarianceReport(ctx context.Context, tenantID, fiscalYearID int64, th budgets.Thresholds) (budgets.VarianceReport, error)
}

// BudgetVarianceJob refreshes budget actuals and logs lines over threshold.
type BudgetVarianceJob struct {
	Directory Directory
	Calendar  CalendarLookup
	Budgets   BudgetRunner
	Locker    TenantLocker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewBudgetVarianceJob constructs the variance handler.
func NewBudgetVarianceJob(dir Directory, calendar CalendarLookup, runner BudgetRunner, locker TenantLocker,
	logger *slog.Logger, metrics *jobmetrics.Metrics) *BudgetVarianceJob {
	return &BudgetVarianceJob{
		Directory: dir,
		Calendar:  calendar,
		Budgets:   runner,
		Locker:    locker,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock for testing.
func (j *BudgetVarianceJob) WithClock(clock func() time.Time) {
	if clock != nil {
		j.clock = clock
	}
}

// Handle executes the variance run.
func (j *BudgetVarianceJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Directory == nil || j.Calendar == nil || j.Budgets == nil {
		return errors.New("budget variance: dependencies not configured")
	}
	var payload BudgetVariancePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	th, err := parseThresholds(payload)
	if err != nil {
		return asynq.SkipRetry
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracker := j.Metrics.Track(TaskBudgetVariance)
	err = forEachTenant(ctx, j.Directory, j.Locker, logger, TaskBudgetVariance, payload.TenantID,
		func(ctx context.Context, tenantID int64) error {
			fiscalYearID := payload.FiscalYearID
			if fiscalYearID == 0 {
				fy, err := j.Calendar.FindActiveFiscalYear(ctx, tenantID, shared.DateOnly(j.clock()))
				if errors.Is(err, shared.ErrNoActiveFiscalYear) {
					return nil
				}
				if err != nil {
					return err
				}
				fiscalYearID = fy.ID
			}
			if _, err := j.Budgets.RecalculateFiscalYear(ctx, tenantID, fiscalYearID); err != nil {
				return err
			}
			report, err := j.Budgets.VarianceReport(ctx, tenantID, fiscalYearID, th)
			if err != nil {
				return err
			}
			j.Metrics.SetBudgetFlagged(tenantID, report.FlaggedCount)
			for _, row := range report.Rows {
				if !row.Flagged {
					continue
				}
				logger.Warn("budget variance over threshold",
					slog.Int64("tenant_id", tenantID),
					slog.String("account", row.AccountCode),
					slog.String("budgeted", row.Budgeted.String()),
					slog.String("actual", row.Actual.String()),
					slog.String("variance_pct", row.VariancePct.String()))
			}
			return nil
		})
	return tracker.End(err)
}

func parseThresholds(p BudgetVariancePayload) (budgets.Thresholds, error) {
	var th budgets.Thresholds
	if p.ThresholdAmount != "" {
		v, err := decimal.NewFromString(p.ThresholdAmount)
		if err != nil {
			return th, err
		}
		th.Amount = &v
	}
	if p.ThresholdPercent != "" {
		v, err := decimal.NewFromString(p.ThresholdPercent)
		if err != nil {
			return th, err
		}
		th.Percent = &v
	}
	return th, nil
}

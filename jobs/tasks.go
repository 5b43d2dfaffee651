package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-checks posted entries, trial balances and cached balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskBalancesRefresh recomputes cached account balances.
	TaskBalancesRefresh = "ledger:balances:refresh"
	// TaskBudgetVariance recalculates budget actuals and reports variances.
	TaskBudgetVariance = "ledger:budget:variance"
	// TaskIdempotencyCleanup purges expired Idempotency-Key records.
	TaskIdempotencyCleanup = "ledger:idempotency:cleanup"
)

// TenantPayload scopes a job to one tenant. Zero means every tenant.
type TenantPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// BudgetVariancePayload configures the budget variance run. A zero fiscal
// year selects each tenant's active year.
type BudgetVariancePayload struct {
	TenantID         int64  `json:"tenant_id"`
	FiscalYearID     int64  `json:"fiscal_year_id,omitempty"`
	ThresholdAmount  string `json:"threshold_amount,omitempty"`
	ThresholdPercent string `json:"threshold_percent,omitempty"`
}

// CleanupPayload sets how long idempotency keys are retained.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIntegrityTask constructs a ledger integrity task.
func NewIntegrityTask(tenantID int64) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, TenantPayload{TenantID: tenantID})
}

// NewBalancesRefreshTask constructs a cached balance refresh task.
func NewBalancesRefreshTask(tenantID int64) (*asynq.Task, error) {
	return newTask(TaskBalancesRefresh, TenantPayload{TenantID: tenantID})
}

// NewBudgetVarianceTask constructs a budget variance task.
func NewBudgetVarianceTask(payload BudgetVariancePayload) (*asynq.Task, error) {
	return newTask(TaskBudgetVariance, payload)
}

// NewIdempotencyCleanupTask constructs an idempotency cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, CleanupPayload{RetentionHours: retentionHours})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, asynq.Queue(QueueDefault)), nil
}

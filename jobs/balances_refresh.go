package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BalancesRefreshJob recomputes cached account balances from posted lines.
type BalancesRefreshJob struct {
	Directory Directory
	Balances  BalanceRefresher
	Locker    TenantLocker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewBalancesRefreshJob constructs the refresh handler.
func NewBalancesRefreshJob(dir Directory, balances BalanceRefresher, locker TenantLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalancesRefreshJob {
	return &BalancesRefreshJob{Directory: dir, Balances: balances, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh.
func (j *BalancesRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Directory == nil || j.Balances == nil {
		return errors.New("balances refresh: dependencies not configured")
	}
	var payload TenantPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := j.Metrics.Track(TaskBalancesRefresh)
	err := forEachTenant(ctx, j.Directory, j.Locker, logger, TaskBalancesRefresh, payload.TenantID,
		func(ctx context.Context, tenantID int64) error {
			drifted, err := j.Balances.RefreshTenant(ctx, tenantID)
			if err != nil {
				return err
			}
			j.Metrics.SetBalanceDrift(tenantID, len(drifted))
			logger.Info("cached balances refreshed", slog.Int64("tenant_id", tenantID), slog.Int("drifted", len(drifted)))
			return nil
		})
	return tracker.End(err)
}

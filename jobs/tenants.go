package jobs

import (
	"context"
	"log/slog"

	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TenantLocker guards a job against concurrent runs for the same tenant.
type TenantLocker interface {
	TryAcquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error)
}

// forEachTenant runs fn for tenantID, or for every tenant when zero. Tenants
// whose lock is held elsewhere are skipped. The first error stops the loop.
func forEachTenant(ctx context.Context, dir Directory, locker TenantLocker, logger *slog.Logger, job string, tenantID int64,
	fn func(ctx context.Context, tenantID int64) error) error {
	tenants := []int64{tenantID}
	if tenantID == 0 {
		var err error
		tenants, err = dir.ListTenants(ctx)
		if err != nil {
			return err
		}
	}
	for _, id := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		release := func(context.Context) error { return nil }
		if locker != nil {
			rel, ok, err := locker.TryAcquire(ctx, internalShared.JobLockKey(job, id))
			if err != nil {
				return err
			}
			if !ok {
				logger.Info("job already running for tenant", slog.String("job", job), slog.Int64("tenant_id", id))
				continue
			}
			release = rel
		}
		err := fn(ctx, id)
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn("release job lock", slog.String("job", job), slog.Int64("tenant_id", id), slog.Any("error", relErr))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

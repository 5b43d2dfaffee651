package shared

import (
	"errors"
	"fmt"
)

// ErrLockNotObtained reports that another process holds a ledger lock.
var ErrLockNotObtained = errors.New("ledger lock held by another process")

// ErrConcurrentUpdate reports a transaction aborted by a conflicting concurrent
// write. The request can be retried as is.
var ErrConcurrentUpdate = errors.New("ledger rows changed by a concurrent transaction")

// FiscalYearLockKey builds the redis key serialising entry writes within a fiscal year.
func FiscalYearLockKey(fiscalYearID int64) string {
	return fmt.Sprintf("ledger:fiscal-year:%d:lock", fiscalYearID)
}

// JobLockKey builds the redis key guarding a periodic job for one tenant.
func JobLockKey(job string, tenantID int64) string {
	return fmt.Sprintf("ledger:job:%s:%d:lock", job, tenantID)
}

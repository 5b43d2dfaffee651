package jobs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers the cross-tenant questions jobs need.
type Directory interface {
	ListTenants(ctx context.Context) ([]int64, error)
	UnbalancedPostedEntries(ctx context.Context, tenantID int64) ([]string, error)
}

// PGDirectory reads tenants and integrity violations from postgres.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs the directory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// ListTenants returns every tenant owning at least one account.
func (d *PGDirectory) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := d.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UnbalancedPostedEntries lists posted entry numbers whose lines do not net
// to zero or disagree with the stored totals.
func (d *PGDirectory) UnbalancedPostedEntries(ctx context.Context, tenantID int64) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT e.number
FROM journal_entries e LEFT JOIN journal_lines l ON l.journal_id = e.id
WHERE e.tenant_id=$1 AND e.status='POSTED'
GROUP BY e.id, e.number, e.total_debit, e.total_credit
HAVING ABS(COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)) > 0.01
    OR COALESCE(SUM(l.debit),0) <> e.total_debit
    OR COALESCE(SUM(l.credit),0) <> e.total_credit
    OR COUNT(l.id) < 2
ORDER BY e.number`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		out = append(out, number)
	}
	return out, rows.Err()
}

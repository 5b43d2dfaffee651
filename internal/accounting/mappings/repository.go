package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMappingNotFound indicates the role has no account for the tenant.
var ErrMappingNotFound = errors.New("accounting: account mapping not found")

type Repository interface {
	Get(ctx context.Context, tenantID int64, role Role) (AccountMapping, error)
	List(ctx context.Context, tenantID int64) ([]AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified role.
func (r *repository) Get(ctx context.Context, tenantID int64, role Role) (AccountMapping, error) {
	var m AccountMapping
	err := r.db.QueryRow(ctx, `SELECT tenant_id, role, account_id, created_at, updated_at FROM account_mappings WHERE tenant_id=$1 AND role=$2`, tenantID, role).
		Scan(&m.TenantID, &m.Role, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT tenant_id, role, account_id, created_at, updated_at FROM account_mappings WHERE tenant_id=$1 ORDER BY role`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.TenantID, &m.Role, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO account_mappings (tenant_id, role, account_id) VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, role) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING created_at, updated_at`, m.TenantID, m.Role, m.AccountID).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return AccountMapping{}, err
	}
	return m, nil
}

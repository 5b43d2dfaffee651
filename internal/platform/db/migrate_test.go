package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/ledger?sslmode=disable", MigrationURL("postgres://u:p@localhost:5432/ledger?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/ledger", MigrationURL("postgresql://localhost/ledger"))
	assert.Equal(t, "pgx5://already", MigrationURL("pgx5://already"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaDeclaresRepositoryConstraints(t *testing.T) {
	raw, err := fs.ReadFile(migrations, "migrations/0001_ledger.up.sql")
	require.NoError(t, err)
	schema := string(raw)
	for _, name := range []string{
		"uq_accounts_tenant_code",
		"uq_accounts_tenant_name",
		"uq_fiscal_years_tenant_name",
		"uq_source_links",
		"uq_budget_lines_year_account",
		"uq_idempotency_keys",
		"uq_journal_entries_number",
		"chk_journal_lines_one_side",
		"chk_journal_lines_debit_nonnegative",
		"chk_journal_lines_credit_nonnegative",
		"journal_number_sequences",
	} {
		assert.Contains(t, schema, name)
	}
}

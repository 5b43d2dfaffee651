// Package commands implements the ledgerctl operator CLI.
package commands

import (
	"context"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// Ledger is the slice of the ledger facade the CLI drives.
type Ledger interface {
	SetupChartOfAccounts(ctx context.Context, tenantID, actorID int64) (map[string]accounts.Account, error)
	CreateFiscalYear(ctx context.Context, in periods.CreateFiscalYearInput) (periods.FiscalYear, []periods.Period, error)
}

// Queue enqueues and inspects background jobs.
type Queue interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Stats(ctx context.Context) (QueueStats, error)
	Close() error
}

// Deps opens the resources each command needs. Commands only open what they use.
type Deps struct {
	OpenMigrator func() (Migrator, error)
	OpenLedger   func(ctx context.Context) (Ledger, func(), error)
	OpenQueue    func() (Queue, error)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(deps Deps, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the school general ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	rootCmd.AddCommand(newMigrateCommand(deps))
	rootCmd.AddCommand(newCOACommand(deps))
	rootCmd.AddCommand(newFiscalYearCommand(deps))
	rootCmd.AddCommand(newJobsCommand(deps))

	return rootCmd
}

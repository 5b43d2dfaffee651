package main

import (
	"context"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/commands"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type ledger struct {
	*accounting.Service
}

func (l ledger) CreateFiscalYear(ctx context.Context, in periods.CreateFiscalYearInput) (periods.FiscalYear, []periods.Period, error) {
	return l.Periods.CreateFiscalYear(ctx, in)
}

func main() {
	var cfg *app.Config
	loadConfig := func() (*app.Config, error) {
		if cfg != nil {
			return cfg, nil
		}
		c, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		cfg = c
		return cfg, nil
	}

	deps := commands.Deps{
		OpenMigrator: func() (commands.Migrator, error) {
			c, err := loadConfig()
			if err != nil {
				return nil, err
			}
			return db.NewMigrator(c.PGDSN)
		},
		OpenLedger: func(ctx context.Context) (commands.Ledger, func(), error) {
			c, err := loadConfig()
			if err != nil {
				return nil, nil, err
			}
			pool, err := db.New(ctx, c.PGDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return nil, nil, err
			}
			logger := app.NewLogger(c)
			svc := accounting.NewService(accounting.NewComponents(pool, shared.NewAuditLogger(pool)), logger)
			return ledger{svc}, pool.Close, nil
		},
		OpenQueue: func() (commands.Queue, error) {
			c, err := loadConfig()
			if err != nil {
				return nil, err
			}
			return commands.NewAsynqQueue(c.RedisAddr), nil
		},
	}

	if err := commands.NewRootCommand(deps, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

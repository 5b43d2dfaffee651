package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

func newFiscalYearCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fiscal-year",
		Short: "Manage fiscal years",
	}

	var (
		tenantID, actorID int64
		name, start, end  string
		noPeriods         bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an active fiscal year with monthly periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := time.Parse(time.DateOnly, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, err := time.Parse(time.DateOnly, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			ledger, closeFn, err := deps.OpenLedger(cmd.Context())
			if err != nil {
				return fmt.Errorf("opening ledger: %w", err)
			}
			defer closeFn()

			fy, ps, err := ledger.CreateFiscalYear(cmd.Context(), periods.CreateFiscalYearInput{
				TenantID:        tenantID,
				Name:            name,
				StartDate:       startDate,
				EndDate:         endDate,
				IsActive:        true,
				GeneratePeriods: !noPeriods,
				ActorID:         actorID,
			})
			if err != nil {
				return err
			}
			cmd.Printf("fiscal year %s (id %d) %s..%s with %d periods\n", fy.Name, fy.ID,
				fy.StartDate.Format(time.DateOnly), fy.EndDate.Format(time.DateOnly), len(ps))
			return nil
		},
	}
	create.Flags().Int64Var(&tenantID, "tenant", 0, "tenant (school) id (required)")
	create.Flags().Int64Var(&actorID, "actor", 0, "user id recorded in the audit log")
	create.Flags().StringVar(&name, "name", "", "fiscal year name, e.g. 2025/2026 (required)")
	create.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (required)")
	create.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (required)")
	create.Flags().BoolVar(&noPeriods, "no-periods", false, "skip generating monthly periods")
	for _, f := range []string{"tenant", "name", "start", "end"} {
		_ = create.MarkFlagRequired(f)
	}
	cmd.AddCommand(create)

	return cmd
}

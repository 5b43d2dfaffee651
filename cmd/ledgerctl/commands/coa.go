package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCOACommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coa",
		Short: "Manage the chart of accounts",
	}

	var tenantID, actorID int64
	setup := &cobra.Command{
		Use:   "setup",
		Short: "Create the default chart of accounts and posting mappings for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 {
				return fmt.Errorf("--tenant must be positive")
			}
			ledger, closeFn, err := deps.OpenLedger(cmd.Context())
			if err != nil {
				return fmt.Errorf("opening ledger: %w", err)
			}
			defer closeFn()

			chart, err := ledger.SetupChartOfAccounts(cmd.Context(), tenantID, actorID)
			if err != nil {
				return err
			}
			codes := make([]string, 0, len(chart))
			for code := range chart {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				acc := chart[code]
				cmd.Printf("%s\t%s\t%s\n", acc.Code, acc.Type, acc.Name)
			}
			cmd.Printf("%d accounts ready for tenant %d\n", len(chart), tenantID)
			return nil
		},
	}
	setup.Flags().Int64Var(&tenantID, "tenant", 0, "tenant (school) id (required)")
	setup.Flags().Int64Var(&actorID, "actor", 0, "user id recorded in the audit log")
	_ = setup.MarkFlagRequired("tenant")
	cmd.AddCommand(setup)

	return cmd
}

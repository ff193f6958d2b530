package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the entrate-cli command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "entrate-cli",
		Short: "Inspect income schedules and run materialization",
		Long: `entrate-cli evaluates income schedules offline and drives the
record generator against the configured database.

Schedule files are TOML or JSON documents describing one schedule:

  frequency = "MONTHLY"
  scheduleDays = [10, 25]
  amount = 1600.0
  useManualAmounts = true

  [scheduleDayAmounts]
  10 = 1000.0
  25 = 600.0`,
		SilenceUsage: true,
	}

	root.AddCommand(newNextCommand())
	root.AddCommand(newUpcomingCommand())
	root.AddCommand(newRecentCommand())
	root.AddCommand(newGenerateCommand())
	return root
}

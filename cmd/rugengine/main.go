package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusnet/rugengine/cmd/rugengine/commands"
	"github.com/nimbusnet/rugengine/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rugengine",
	Short: "rugengine - tenant router dispatch and reconciliation engine",
	Long: `rugengine drives tenant-owned virtual routers through a reconciliation
state machine, coalescing inbound lifecycle events per router and fanning
work out across a bounded worker pool while keeping at most one update
in flight per router.

Available commands:
  serve    - Start the dispatch engine
  version  - Show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() != "version" {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	if err := logger.Initialize(false); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize logger: %v\n", err)
	}

	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

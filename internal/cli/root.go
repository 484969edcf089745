// Package cli wires the benchmatrix commands.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "benchmatrix",
	Short:   "Reproducible benchmark orchestration across execution clients",
	Version: version,
	Long: `Benchmatrix runs the same workload scenarios against interchangeable
execution clients under controlled conditions: isolated copy-on-write
data directories, a deterministic scenario order, an explicit warmup
protocol, and a cross-client validation pass that ensures every client
actually computed the same answers.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(compareCmd)
	RootCmd.AddCommand(sweepCmd)
}

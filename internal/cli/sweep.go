package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gasbench/benchmatrix/internal/output"
	"github.com/gasbench/benchmatrix/internal/snapshot"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Unmount and remove stale snapshot overlays",
	Long: `Scan the overlay runtime directory for mounts left behind by crashed
or interrupted runs, unmount them (escalating when busy) and remove
their scratch directories.

  benchmatrix sweep --overlay-root overlay-runtime/`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSweep(cmd); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	},
}

func runSweep(cmd *cobra.Command) error {
	overlayRoot, _ := cmd.Flags().GetString("overlay-root")
	verbose, _ := cmd.Flags().GetBool("verbose")

	console := output.NewConsole(verbose)
	manager := snapshot.NewManager("", overlayRoot, snapshot.NewMounter(), console)
	if err := manager.SweepStale(); err != nil {
		return fmt.Errorf("sweep overlays under %s: %w", overlayRoot, err)
	}
	console.Successf("overlay runtime %s is clean", overlayRoot)
	return nil
}

func init() {
	sweepCmd.Flags().String("overlay-root", "overlay-runtime", "Overlay runtime directory to sweep")
	sweepCmd.Flags().Bool("verbose", false, "Verbose progress output")
}

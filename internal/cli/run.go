package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gasbench/benchmatrix/internal/catalog"
	"github.com/gasbench/benchmatrix/internal/config"
	"github.com/gasbench/benchmatrix/internal/ledger"
	"github.com/gasbench/benchmatrix/internal/measure"
	"github.com/gasbench/benchmatrix/internal/node"
	"github.com/gasbench/benchmatrix/internal/output"
	"github.com/gasbench/benchmatrix/internal/scheduler"
	"github.com/gasbench/benchmatrix/internal/snapshot"
	"github.com/gasbench/benchmatrix/internal/validate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the benchmark matrix across clients and runs",
	Long: `Run every discovered scenario against every selected client for the
requested number of runs, then cross-validate the captured responses.

Simple directory of workloads:
  benchmatrix run --tests-path tests/ --clients geth,nethermind --runs 3

Structured roots with per-root genesis and snapshot isolation:
  benchmatrix run --tests-file roots.yaml \
    --clients geth,besu \
    --snapshot-root /snapshots/{network}/{client} \
    --network mainnet \
    --warmup-count 3 --drop-cache`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMatrix(cmd); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	},
}

func runMatrix(cmd *cobra.Command) error {
	flags := cmd.Flags()
	testsPath, _ := flags.GetString("tests-path")
	testsFile, _ := flags.GetString("tests-file")
	clientsFlag, _ := flags.GetString("clients")
	runs, _ := flags.GetInt("runs")
	imagesPath, _ := flags.GetString("images")
	imageBulk, _ := flags.GetString("image-bulk")
	warmupCount, _ := flags.GetInt("warmup-count")
	filters, _ := flags.GetStringSlice("filter")
	network, _ := flags.GetString("network")
	snapshotRoot, _ := flags.GetString("snapshot-root")
	restartEach, _ := flags.GetBool("restart-each-scenario")
	warmupFile, _ := flags.GetString("warmup-file")
	warmupDir, _ := flags.GetString("warmup-dir")
	jwtPath, _ := flags.GetString("jwt-path")
	tool, _ := flags.GetString("tool")
	endpoint, _ := flags.GetString("endpoint")
	outputRoot, _ := flags.GetString("output")
	dropCache, _ := flags.GetBool("drop-cache")
	ledgerPath, _ := flags.GetString("ledger")
	ledgerGated, _ := flags.GetString("ledger-gated")
	scriptsRoot, _ := flags.GetString("scripts")
	verbose, _ := flags.GetBool("verbose")

	console := output.NewConsole(verbose)

	clients := splitList(clientsFlag)
	if len(clients) == 0 {
		return fmt.Errorf("--clients is required")
	}
	if runs < 1 {
		return fmt.Errorf("--runs must be at least 1")
	}

	images, err := config.LoadImages(imagesPath)
	if err != nil {
		return err
	}
	images, err = config.MergeImageOverrides(images, imageBulk)
	if err != nil {
		return err
	}

	var roots []config.TestRoot
	switch {
	case testsFile != "":
		roots, err = config.LoadRoots(testsFile)
		if err != nil {
			return err
		}
	case testsPath != "":
		roots = []config.TestRoot{{Path: testsPath}}
	default:
		return fmt.Errorf("either --tests-path or --tests-file is required")
	}

	cat := &catalog.Catalog{Console: console}
	entries, err := cat.Discover(roots)
	if err != nil {
		return fmt.Errorf("discover scenarios: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no scenarios found under the configured roots")
	}
	console.Infof("discovered %d scenario entries for %d client(s), %d run(s)",
		len(entries), len(clients), runs)

	sched := scheduler.New(scheduler.Options{
		Clients:             clients,
		Runs:                runs,
		Filters:             filters,
		Network:             network,
		WarmupFile:          warmupFile,
		WarmupDir:           warmupDir,
		WarmupCount:         warmupCount,
		RestartEachScenario: restartEach,
		DropCache:           dropCache,
		LedgerGated:         splitList(ledgerGated),
		DataRoot:            filepath.Join(outputRoot, "execution-data"),
		JWTSecretPath:       jwtPath,
	}, entries, console)

	sched.Ledger = ledger.Load(ledgerPath)
	if snapshotRoot != "" {
		sched.Snapshots = snapshot.NewManager(snapshotRoot,
			filepath.Join(outputRoot, "overlay-runtime"), snapshot.NewMounter(), console)
	}

	supervisor := node.NewSupervisor(scriptsRoot, images, console)
	supervisor.ReadyEndpoint = endpoint
	supervisor.LogsDir = filepath.Join(outputRoot, "logs")
	sched.Nodes = supervisor

	sched.Measure = measure.NewRunner(tool, endpoint, jwtPath, outputRoot)
	sched.Validator = validate.NewValidator(filepath.Join(outputRoot, string(measure.KindResults)), console)

	// One cleanup path for signals and normal exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := sched.Run(ctx)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(filepath.Join(outputRoot, "reports", "validation.json")); err != nil {
		console.Warnf("write validation report: %v", err)
	}
	if !report.Pass {
		return fmt.Errorf("cross-client validation failed")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func init() {
	runCmd.Flags().String("tests-path", "", "Directory or file of workload scenarios")
	runCmd.Flags().String("tests-file", "", "YAML file listing test roots with optional per-root genesis")
	runCmd.Flags().String("clients", "", "Comma-separated client ids to benchmark")
	runCmd.Flags().Int("runs", 1, "Number of full passes over the matrix")
	runCmd.Flags().String("images", "images.yaml", "YAML file mapping client ids to container images")
	runCmd.Flags().String("image-bulk", "", "JSON map of per-client image overrides")
	runCmd.Flags().Int("warmup-count", 0, "Opcode warmup repetitions before each measured scenario (0 disables)")
	runCmd.Flags().StringSlice("filter", nil, "Case-insensitive substring filters over scenario names (repeatable)")
	runCmd.Flags().String("network", "", "Network name used for snapshot resolution and node configuration")
	runCmd.Flags().String("snapshot-root", "", "Seed-data root for copy-on-write overlays; supports {client}/{network} placeholders")
	runCmd.Flags().Bool("restart-each-scenario", false, "Restart the client before every measured scenario")
	runCmd.Flags().String("warmup-file", "", "Payload replayed once per client per run before any scenario")
	runCmd.Flags().String("warmup-dir", "", "Directory of per-opcode warmup payloads named by normalized scenario")
	runCmd.Flags().String("jwt-path", "", "JWT secret shared between the client and the measurement tool")
	runCmd.Flags().String("tool", "kute", "Measurement tool executable")
	runCmd.Flags().String("endpoint", "http://localhost:8545", "Client RPC endpoint")
	runCmd.Flags().String("output", ".", "Root directory for results, logs and reports")
	runCmd.Flags().Bool("drop-cache", false, "Drop the kernel page cache before each measured scenario")
	runCmd.Flags().String("ledger", ledger.DefaultFile, "Execution-ledger file path")
	runCmd.Flags().String("ledger-gated", "", "Comma-separated clients throttled to one run per UTC day")
	runCmd.Flags().String("scripts", "scripts", "Root of per-client lifecycle scripts")
	runCmd.Flags().Bool("verbose", false, "Verbose progress output")
}

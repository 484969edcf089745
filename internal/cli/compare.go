package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gasbench/benchmatrix/internal/output"
	"github.com/gasbench/benchmatrix/internal/validate"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Cross-validate response captures from a previous run",
	Long: `Compare the response captures in a results directory across clients
without re-running anything. Useful after a run completed elsewhere, or
to re-check results with a different client subset.

  benchmatrix compare --results results/ --clients geth,nethermind --runs 3`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCompare(cmd); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	},
}

func runCompare(cmd *cobra.Command) error {
	flags := cmd.Flags()
	resultsDir, _ := flags.GetString("results")
	clientsFlag, _ := flags.GetString("clients")
	runs, _ := flags.GetInt("runs")
	asJSON, _ := flags.GetBool("json")
	outPath, _ := flags.GetString("output")
	verbose, _ := flags.GetBool("verbose")

	console := output.NewConsole(verbose)

	clients := splitList(clientsFlag)
	scenarios, foundClients, foundRuns, err := scanCaptures(resultsDir)
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		clients = foundClients
	}
	if runs == 0 {
		runs = foundRuns
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no response captures found under %s", resultsDir)
	}

	v := validate.NewValidator(resultsDir, console)
	report, err := v.Compare(clients, runs, scenarios)
	if err != nil {
		return err
	}
	report.Summarize(console)

	if asJSON && outPath != "" {
		if err := report.WriteJSON(outPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		console.Infof("report written to %s", outPath)
	}
	if !report.Pass {
		return fmt.Errorf("cross-client validation failed")
	}
	return nil
}

// scanCaptures derives the scenario names, clients and run count present
// in a results directory from the {client}_response_{run}_{scenario}.txt
// naming convention.
func scanCaptures(dir string) (scenarios, clients []string, runs int, err error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read results dir %s: %w", dir, err)
	}

	scenarioSet := make(map[string]bool)
	clientSet := make(map[string]bool)

	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		stem := strings.TrimSuffix(name, ".txt")
		parts := strings.SplitN(stem, "_response_", 2)
		if len(parts) != 2 {
			continue
		}
		rest := strings.SplitN(parts[1], "_", 2)
		if len(rest) != 2 {
			continue
		}
		run, convErr := strconv.Atoi(rest[0])
		if convErr != nil {
			continue
		}

		clientSet[parts[0]] = true
		scenarioSet[rest[1]] = true
		if run > runs {
			runs = run
		}
	}

	for s := range scenarioSet {
		scenarios = append(scenarios, s)
	}
	sort.Strings(scenarios)
	for c := range clientSet {
		clients = append(clients, c)
	}
	sort.Strings(clients)
	return scenarios, clients, runs, nil
}

func init() {
	compareCmd.Flags().String("results", filepath.Join(".", "results"), "Directory of response captures")
	compareCmd.Flags().String("clients", "", "Comma-separated clients to compare (default: all found)")
	compareCmd.Flags().Int("runs", 0, "Run count to compare (default: highest run found)")
	compareCmd.Flags().Bool("json", false, "Also write the report as JSON")
	compareCmd.Flags().String("output", "", "Path for the JSON report")
	compareCmd.Flags().Bool("verbose", false, "Verbose progress output")
}

// Package measure invokes the external measurement tool that replays a
// workload against a running client and captures responses and timings.
package measure

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Kind selects the results area an invocation writes into.
type Kind string

const (
	KindResults Kind = "results"
	KindWarmup  Kind = "warmupresults"
	KindPrep    Kind = "prepresults"
)

// ExecutionError reports a non-zero exit of the measurement tool. The
// scheduler treats it as soft: the scenario counts as attempted and the
// loop continues.
type ExecutionError struct {
	Scenario string
	Client   string
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("measurement of %s for %s failed: %v: %s", e.Scenario, e.Client, e.Err, e.Stderr)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Invocation is one measurement run.
type Invocation struct {
	Client   string
	Run      int
	Scenario string
	Input    string
	Kind     Kind

	// Filter optionally restricts which requests the tool replays.
	Filter string
}

// Runner builds and executes measurement-tool command lines.
type Runner struct {
	// ToolPath locates the measurement executable.
	ToolPath string

	// Endpoint is the client's authenticated RPC endpoint.
	Endpoint string

	// SecretPath is the JWT secret shared with the client.
	SecretPath string

	// OutputRoot is the directory the results areas live under.
	OutputRoot string

	// ExtraArgs are passed through to the tool verbatim.
	ExtraArgs []string

	// Exec abstracts process execution for tests.
	Exec CommandExecutor
}

// CommandExecutor runs the measurement tool once and returns its stdout.
type CommandExecutor interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

type systemExecutor struct{}

func (systemExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	return out, []byte(stderr.String()), err
}

// NewRunner creates a Runner that executes the real tool.
func NewRunner(toolPath, endpoint, secretPath, outputRoot string) *Runner {
	return &Runner{
		ToolPath:   toolPath,
		Endpoint:   endpoint,
		SecretPath: secretPath,
		OutputRoot: outputRoot,
		Exec:       systemExecutor{},
	}
}

// ResponseFile returns the conventional response-capture path for an
// invocation: <root>/<kind>/<client>_response_<run>_<scenario>.txt.
func (r *Runner) ResponseFile(in Invocation) string {
	name := fmt.Sprintf("%s_response_%d_%s.txt", in.Client, in.Run, in.Scenario)
	return filepath.Join(r.OutputRoot, string(in.Kind), name)
}

// ResultsFile returns the conventional timing-capture path for an
// invocation: <root>/<kind>/<client>_results_<run>_<scenario>.txt.
func (r *Runner) ResultsFile(in Invocation) string {
	name := fmt.Sprintf("%s_results_%d_%s.txt", in.Client, in.Run, in.Scenario)
	return filepath.Join(r.OutputRoot, string(in.Kind), name)
}

// Run executes the tool for one workload file, writing the response
// capture where the tool is told to and the timing capture from the
// tool's stdout.
func (r *Runner) Run(ctx context.Context, in Invocation) error {
	outDir := filepath.Join(r.OutputRoot, string(in.Kind))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create results dir %s: %w", outDir, err)
	}

	args := []string{
		"-i", in.Input,
		"-s", r.SecretPath,
		"-r", r.ResponseFile(in),
		"-a", r.Endpoint,
	}
	if in.Filter != "" {
		args = append(args, "-f", in.Filter)
	}
	args = append(args, r.ExtraArgs...)

	stdout, stderr, err := r.Exec.Output(ctx, r.ToolPath, args...)
	if err != nil {
		return &ExecutionError{
			Scenario: in.Scenario,
			Client:   in.Client,
			Stderr:   strings.TrimSpace(string(stderr)),
			Err:      err,
		}
	}

	if err := os.WriteFile(r.ResultsFile(in), stdout, 0644); err != nil {
		return fmt.Errorf("write timing capture: %w", err)
	}
	return nil
}

package measure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeExecutor struct {
	name   string
	args   []string
	stdout []byte
	stderr []byte
	err    error
}

func (f *fakeExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return f.stdout, f.stderr, f.err
}

func TestRunBuildsCommandLine(t *testing.T) {
	root := t.TempDir()
	exec := &fakeExecutor{stdout: []byte("engine_newPayloadV3 12ms\n")}
	r := NewRunner("/usr/local/bin/kute", "http://localhost:8551", "/tmp/jwt.hex", root)
	r.Exec = exec
	r.ExtraArgs = []string{"--timeout", "30"}

	in := Invocation{
		Client:   "geth",
		Run:      2,
		Scenario: "Transfer",
		Input:    "/tests/Transfer.txt",
		Kind:     KindResults,
		Filter:   "engine_",
	}
	if err := r.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if exec.name != "/usr/local/bin/kute" {
		t.Errorf("unexpected tool path: %s", exec.name)
	}
	got := strings.Join(exec.args, " ")
	for _, want := range []string{
		"-i /tests/Transfer.txt",
		"-s /tmp/jwt.hex",
		"-r " + filepath.Join(root, "results", "geth_response_2_Transfer.txt"),
		"-a http://localhost:8551",
		"-f engine_",
		"--timeout 30",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("command line missing %q: %s", want, got)
		}
	}

	timing, err := os.ReadFile(filepath.Join(root, "results", "geth_results_2_Transfer.txt"))
	if err != nil {
		t.Fatalf("read timing capture: %v", err)
	}
	if string(timing) != "engine_newPayloadV3 12ms\n" {
		t.Errorf("unexpected timing capture: %q", timing)
	}
}

func TestRunOmitsFilterWhenEmpty(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner("kute", "http://localhost:8551", "/tmp/jwt", t.TempDir())
	r.Exec = exec

	if err := r.Run(context.Background(), Invocation{Client: "geth", Scenario: "Burn", Kind: KindWarmup}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, arg := range exec.args {
		if arg == "-f" {
			t.Errorf("filter flag must be omitted when empty: %v", exec.args)
		}
	}
}

func TestRunNonZeroExitCarriesStderr(t *testing.T) {
	exec := &fakeExecutor{
		stderr: []byte("connection refused\n"),
		err:    errors.New("exit status 1"),
	}
	r := NewRunner("kute", "http://localhost:8551", "/tmp/jwt", t.TempDir())
	r.Exec = exec

	err := r.Run(context.Background(), Invocation{Client: "besu", Run: 1, Scenario: "Swap", Kind: KindResults})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Client != "besu" || execErr.Scenario != "Swap" {
		t.Errorf("error missing context: %+v", execErr)
	}
	if execErr.Stderr != "connection refused" {
		t.Errorf("stderr not carried: %q", execErr.Stderr)
	}
}

func TestKindsWriteToSeparateAreas(t *testing.T) {
	root := t.TempDir()
	exec := &fakeExecutor{stdout: []byte("ok")}
	r := NewRunner("kute", "http://localhost:8551", "/tmp/jwt", root)
	r.Exec = exec

	for _, kind := range []Kind{KindResults, KindWarmup, KindPrep} {
		in := Invocation{Client: "geth", Run: 1, Scenario: "Transfer", Kind: kind}
		if err := r.Run(context.Background(), in); err != nil {
			t.Fatalf("Run %s: %v", kind, err)
		}
		if _, err := os.Stat(filepath.Join(root, string(kind), "geth_results_1_Transfer.txt")); err != nil {
			t.Errorf("timing capture missing under %s: %v", kind, err)
		}
	}
}

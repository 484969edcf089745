package validate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gasbench/benchmatrix/internal/output"
)

// Mismatch records a client whose responses diverged from the baseline
// client for one scenario invocation.
type Mismatch struct {
	Scenario string `json:"scenario"`
	Run      int    `json:"run"`
	Baseline string `json:"baseline"`
	Client   string `json:"client"`

	// Line is the first canonicalized line that differs (1-based),
	// 0 when the files differ only in length.
	Line         int    `json:"line,omitempty"`
	BaselineText string `json:"baseline_text,omitempty"`
	ClientText   string `json:"client_text,omitempty"`
}

// Missing records a response capture that should exist but does not.
type Missing struct {
	Scenario string `json:"scenario"`
	Run      int    `json:"run"`
	Client   string `json:"client"`
}

// Report is the outcome of one cross-client validation pass.
type Report struct {
	Pass       bool       `json:"pass"`
	Skipped    bool       `json:"skipped"`
	Compared   int        `json:"compared"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	Missing    []Missing  `json:"missing,omitempty"`
}

// Validator compares response captures across clients.
type Validator struct {
	// ResultsDir holds the {client}_response_{run}_{scenario}.txt files.
	ResultsDir string

	Console *output.Console
}

// NewValidator creates a validator over one results directory.
func NewValidator(resultsDir string, console *output.Console) *Validator {
	return &Validator{ResultsDir: resultsDir, Console: console}
}

func (v *Validator) responsePath(client string, run int, scenario string) string {
	return filepath.Join(v.ResultsDir, fmt.Sprintf("%s_response_%d_%s.txt", client, run, scenario))
}

// Compare checks every (run, scenario) pair across all clients. The
// first client that produced a capture is the baseline; every other
// client's canonicalized hash must match it. With fewer than two
// clients there is nothing to cross-check and the pass is skipped.
func (v *Validator) Compare(clients []string, runs int, scenarios []string) (*Report, error) {
	report := &Report{Pass: true}

	if len(clients) < 2 {
		report.Skipped = true
		v.warnf("only %d client(s) ran, skipping cross-client validation", len(clients))
		return report, nil
	}

	for run := 1; run <= runs; run++ {
		for _, scenario := range scenarios {
			if err := v.compareOne(report, clients, run, scenario); err != nil {
				return nil, err
			}
		}
	}

	report.Pass = len(report.Mismatches) == 0 && len(report.Missing) == 0
	return report, nil
}

func (v *Validator) compareOne(report *Report, clients []string, run int, scenario string) error {
	baseline := ""
	baselineHash := ""

	for _, client := range clients {
		path := v.responsePath(client, run, scenario)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			report.Missing = append(report.Missing, Missing{Scenario: scenario, Run: run, Client: client})
			v.errorf("no response capture for %s run %d scenario %s", client, run, scenario)
			continue
		}

		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}

		if baseline == "" {
			baseline = client
			baselineHash = hash
			continue
		}
		report.Compared++
		if hash == baselineHash {
			continue
		}

		m := Mismatch{Scenario: scenario, Run: run, Baseline: baseline, Client: client}
		m.Line, m.BaselineText, m.ClientText = firstDiff(
			v.responsePath(baseline, run, scenario), path)
		report.Mismatches = append(report.Mismatches, m)
		v.errorf("response mismatch: %s vs %s on scenario %s run %d", baseline, client, scenario, run)
	}
	return nil
}

// firstDiff locates the first canonicalized line where two captures
// disagree. A zero line number means one file is a prefix of the other.
func firstDiff(pathA, pathB string) (int, string, string) {
	a, errA := os.Open(pathA)
	b, errB := os.Open(pathB)
	if errA != nil || errB != nil {
		if a != nil {
			a.Close()
		}
		if b != nil {
			b.Close()
		}
		return 0, "", ""
	}
	defer a.Close()
	defer b.Close()

	scanA := bufio.NewScanner(a)
	scanA.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanB := bufio.NewScanner(b)
	scanB.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for line := 1; ; line++ {
		okA, okB := scanA.Scan(), scanB.Scan()
		if !okA || !okB {
			return 0, "", ""
		}
		la := string(canonicalLine(scanA.Bytes()))
		lb := string(canonicalLine(scanB.Bytes()))
		if la != lb {
			return line, la, lb
		}
	}
}

// WriteJSON writes the report to path for downstream tooling.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Summarize prints the human-readable outcome.
func (r *Report) Summarize(console *output.Console) {
	if console == nil {
		return
	}
	switch {
	case r.Skipped:
		console.Warnf("validation skipped: fewer than two clients")
	case r.Pass:
		console.Successf("validation passed: %d comparisons, all clients agree", r.Compared)
	default:
		console.Errorf("validation failed: %d mismatch(es), %d missing capture(s)",
			len(r.Mismatches), len(r.Missing))
		for _, m := range r.Mismatches {
			if m.Line > 0 {
				console.Errorf("  %s run %d: %s != %s (first divergence at line %d)",
					m.Scenario, m.Run, m.Baseline, m.Client, m.Line)
			} else {
				console.Errorf("  %s run %d: %s != %s (captures differ in length)",
					m.Scenario, m.Run, m.Baseline, m.Client)
			}
		}
		for _, miss := range r.Missing {
			console.Errorf("  %s run %d: no capture from %s", miss.Scenario, miss.Run, miss.Client)
		}
	}
}

func (v *Validator) warnf(format string, args ...interface{}) {
	if v.Console != nil {
		v.Console.Warnf(format, args...)
	}
}

func (v *Validator) errorf(format string, args ...interface{}) {
	if v.Console != nil {
		v.Console.Errorf(format, args...)
	}
}

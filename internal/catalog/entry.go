// Package catalog discovers workload scenarios under configured roots and
// produces the deterministic execution order for a benchmark run.
package catalog

import (
	"path/filepath"
	"strings"
)

// Phase identifies where a scenario entry sits inside a stateful group.
// Flat (free-standing) scenarios carry PhaseNone.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseSetup   Phase = "setup"
	PhaseTesting Phase = "testing"
	PhaseCleanup Phase = "cleanup"
)

// Entry is one workload unit. Entries are immutable once discovered;
// a fresh discovery pass happens per invocation, not per run or client.
type Entry struct {
	// Path locates the request payload file.
	Path string

	// Phase is the stateful-group phase, or PhaseNone for flat files.
	Phase Phase

	// Genesis optionally references a chain-genesis artifact bound to
	// the root this entry was discovered under.
	Genesis string

	// Measured marks entries whose timings feed benchmark statistics.
	// Testing-phase entries are always measured; setup and cleanup
	// entries never are.
	Measured bool
}

// Name returns the scenario name: the file stem without extension.
func (e Entry) Name() string {
	base := filepath.Base(e.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

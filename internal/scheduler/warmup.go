package scheduler

import (
	"os"
	"path/filepath"

	"github.com/gasbench/benchmatrix/internal/catalog"
)

// warmupTracker remembers which normalized scenario names each client
// has already been warmed on, so gas-value variants of the same opcode
// share one warmup.
type warmupTracker struct {
	warmed map[string]map[string]bool
}

func newWarmupTracker() *warmupTracker {
	return &warmupTracker{warmed: make(map[string]map[string]bool)}
}

// claim reports whether client still needs a warmup for the scenario
// and marks it warmed. The first variant of a normalized name claims
// it; later variants get false.
func (w *warmupTracker) claim(client, scenario string) bool {
	name := catalog.NormalizeName(scenario)
	if w.warmed[client] == nil {
		w.warmed[client] = make(map[string]bool)
	}
	if w.warmed[client][name] {
		return false
	}
	w.warmed[client][name] = true
	return true
}

// reset forgets a client's warmup history, for when its node is
// relaunched.
func (w *warmupTracker) reset(client string) {
	delete(w.warmed, client)
}

// resolveWarmupInput picks the payload used to warm a scenario up:
// a file named after the normalized scenario under the warmup dir when
// one exists, otherwise the scenario's own payload.
func resolveWarmupInput(warmupDir, scenarioPath string) string {
	if warmupDir == "" {
		return scenarioPath
	}
	stem := filepath.Base(scenarioPath)
	ext := filepath.Ext(stem)
	name := catalog.NormalizeName(stem[:len(stem)-len(ext)])

	candidate := filepath.Join(warmupDir, name+ext)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return scenarioPath
}

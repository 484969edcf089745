// Package ledger persists the per-client last-execution timestamps used
// to throttle clients whose setup is expensive.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultFile is the conventional ledger file name.
const DefaultFile = "executions.json"

// Ledger maps client ids to the RFC 3339 timestamp of their last
// completed run. A ledger that fails to parse is treated as empty:
// "never executed" is the safe interpretation, never a fatal error.
type Ledger struct {
	path    string
	entries map[string]string
}

// Load reads the ledger at path. Missing or corrupt files yield an
// empty ledger.
func Load(path string) *Ledger {
	l := &Ledger{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return l
	}
	l.entries = entries
	return l
}

// Last returns the recorded timestamp for a client, if any.
func (l *Ledger) Last(client string) (time.Time, bool) {
	raw, ok := l.entries[client]
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Due reports whether a client should run: true when the client has no
// entry, or when its last-recorded calendar date (UTC) differs from
// now's.
func (l *Ledger) Due(client string, now time.Time) bool {
	last, ok := l.Last(client)
	if !ok {
		return true
	}
	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ly != ny || lm != nm || ld != nd
}

// Record stores now as the client's last completed run and persists the
// ledger atomically: write a temp file, validate it parses back, then
// rename over the ledger path. A failed update leaves the previous file
// intact.
func (l *Ledger) Record(client string, now time.Time) error {
	l.entries[client] = now.UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), DefaultFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger temp file: %w", err)
	}

	// Never promote a temp file that does not read back as JSON.
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("reread ledger temp file: %w", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal(check, &parsed); err != nil {
		return fmt.Errorf("ledger temp file is not valid JSON: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("promote ledger temp file: %w", err)
	}
	return nil
}

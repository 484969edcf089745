package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDueWithoutEntry(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), DefaultFile))
	if !l.Due("geth", time.Now()) {
		t.Error("client with no entry must always be due")
	}
}

func TestDueAcrossDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	l := Load(path)

	day := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	if err := l.Record("geth", day); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if l.Due("geth", day) {
		t.Error("client must not be due on the date it was recorded")
	}
	if l.Due("geth", day.Add(2*time.Hour)) {
		t.Error("client must not be due later the same day")
	}
	if !l.Due("geth", day.Add(24*time.Hour)) {
		t.Error("client must be due on the next day")
	}
	if !l.Due("geth", day.AddDate(1, 0, 0)) {
		t.Error("client must be due a year later")
	}
}

func TestDueUsesUTCDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	l := Load(path)

	// 23:30 UTC on the 10th.
	late := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	if err := l.Record("reth", late); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// One hour later it is the 11th in UTC, regardless of local zone.
	local := time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC).In(time.FixedZone("plus5", 5*3600))
	if !l.Due("reth", local) {
		t.Error("date comparison must happen in UTC")
	}
}

func TestRecordPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	l := Load(path)
	if err := l.Record("nethermind", now); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reloaded := Load(path)
	last, ok := reloaded.Last("nethermind")
	if !ok {
		t.Fatal("expected entry after reload")
	}
	if !last.Equal(now) {
		t.Errorf("expected %v, got %v", now, last)
	}

	// The on-disk artifact must always be valid JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("ledger is not valid JSON: %v", err)
	}
}

func TestCorruptLedgerFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt ledger: %v", err)
	}

	l := Load(path)
	if !l.Due("geth", time.Now()) {
		t.Error("corrupt ledger must be treated as empty")
	}

	// Recording over a corrupt ledger must produce a valid file.
	if err := l.Record("geth", time.Now()); err != nil {
		t.Fatalf("Record over corrupt ledger: %v", err)
	}
	if Load(path).Due("geth", time.Now()) {
		t.Error("expected recorded entry to be readable")
	}
}

func TestRecordLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)

	l := Load(path)
	if err := l.Record("besu", time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(items) != 1 || items[0].Name() != DefaultFile {
		names := make([]string, 0, len(items))
		for _, item := range items {
			names = append(names, item.Name())
		}
		t.Errorf("expected only %s, found %v", DefaultFile, names)
	}
}

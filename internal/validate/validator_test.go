package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCapture(t *testing.T, dir, client string, run int, scenario, content string) {
	t.Helper()
	name := filepath.Join(dir, fmt.Sprintf("%s_response_%d_%s.txt", client, run, scenario))
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
}

func TestCanonicalLineSortsKeysAndCompacts(t *testing.T) {
	got := string(canonicalLine([]byte(`{ "b": 2,   "a": 1 }`)))
	if got != `{"a":1,"b":2}` {
		t.Errorf("unexpected canonical form: %s", got)
	}
}

func TestCanonicalLinePassesNonJSONThrough(t *testing.T) {
	line := "not json at all"
	if got := string(canonicalLine([]byte(line))); got != line {
		t.Errorf("non-JSON line must pass through verbatim, got %s", got)
	}
}

func TestWhitespaceOnlyDifferencePasses(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "geth", 1, "Transfer", `{"jsonrpc":"2.0","id":1,"result":"0xabc"}`+"\n")
	writeCapture(t, dir, "besu", 1, "Transfer", `{ "id": 1, "jsonrpc": "2.0", "result": "0xabc" }`+"\n")

	v := NewValidator(dir, nil)
	report, err := v.Compare([]string{"geth", "besu"}, 1, []string{"Transfer"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !report.Pass {
		t.Errorf("formatting-only difference must pass, got %+v", report)
	}
	if report.Compared != 1 {
		t.Errorf("expected 1 comparison, got %d", report.Compared)
	}
}

func TestValueDifferenceFailsNamingBothClients(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "geth", 1, "Burn", `{"id":1,"result":"0xaaa"}`+"\n")
	writeCapture(t, dir, "besu", 1, "Burn", `{"id":1,"result":"0xbbb"}`+"\n")

	v := NewValidator(dir, nil)
	report, err := v.Compare([]string{"geth", "besu"}, 1, []string{"Burn"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if report.Pass {
		t.Fatal("value difference must fail validation")
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected one mismatch, got %+v", report.Mismatches)
	}
	m := report.Mismatches[0]
	if m.Baseline != "geth" || m.Client != "besu" || m.Scenario != "Burn" {
		t.Errorf("mismatch must name both clients and the scenario: %+v", m)
	}
	if m.Line != 1 {
		t.Errorf("expected divergence at line 1, got %d", m.Line)
	}
}

func TestMissingCaptureReported(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, "geth", 1, "Swap", `{"id":1,"result":true}`+"\n")

	v := NewValidator(dir, nil)
	report, err := v.Compare([]string{"geth", "besu"}, 1, []string{"Swap"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if report.Pass {
		t.Fatal("missing capture must fail validation")
	}
	if len(report.Missing) != 1 || report.Missing[0].Client != "besu" {
		t.Errorf("expected besu reported missing, got %+v", report.Missing)
	}
}

func TestSingleClientSkips(t *testing.T) {
	v := NewValidator(t.TempDir(), nil)
	report, err := v.Compare([]string{"geth"}, 3, []string{"Transfer"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !report.Skipped || !report.Pass {
		t.Errorf("single client must skip and pass, got %+v", report)
	}
}

func TestBaselineShiftsWhenFirstClientMissing(t *testing.T) {
	dir := t.TempDir()
	// geth produced nothing; besu and nethermind agree.
	writeCapture(t, dir, "besu", 1, "Swap", `{"id":1}`+"\n")
	writeCapture(t, dir, "nethermind", 1, "Swap", `{"id":1}`+"\n")

	v := NewValidator(dir, nil)
	report, err := v.Compare([]string{"geth", "besu", "nethermind"}, 1, []string{"Swap"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(report.Mismatches) != 0 {
		t.Errorf("surviving clients agree, expected no mismatches: %+v", report.Mismatches)
	}
	if len(report.Missing) != 1 {
		t.Errorf("expected geth reported missing: %+v", report.Missing)
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	report := &Report{Pass: false, Mismatches: []Mismatch{{Scenario: "Burn", Run: 1, Baseline: "geth", Client: "besu"}}}
	path := filepath.Join(t.TempDir(), "reports", "validation.json")
	if err := report.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{`"pass": false`, `"Burn"`, `"besu"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("report missing %q:\n%s", want, data)
		}
	}
}

package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestScanCaptures(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"geth_response_1_Transfer.txt",
		"geth_response_2_Transfer.txt",
		"geth_response_1_Keccak_256.txt",
		"besu_response_1_Transfer.txt",
		"geth_results_1_Transfer.txt", // timing capture, not a response
		"notes.md",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	scenarios, clients, runs, err := scanCaptures(dir)
	if err != nil {
		t.Fatalf("scanCaptures: %v", err)
	}
	if !reflect.DeepEqual(scenarios, []string{"Keccak_256", "Transfer"}) {
		t.Errorf("unexpected scenarios: %v", scenarios)
	}
	if !reflect.DeepEqual(clients, []string{"besu", "geth"}) {
		t.Errorf("unexpected clients: %v", clients)
	}
	if runs != 2 {
		t.Errorf("expected highest run 2, got %d", runs)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "geth", want: []string{"geth"}},
		{name: "spaces and empties", in: " geth, besu,,nethermind ", want: []string{"geth", "besu", "nethermind"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "compare": false, "sweep": false}
	for _, cmd := range RootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

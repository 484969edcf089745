package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("error writing %s: %v", name, err)
	}
	return path
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "images.yaml", `
images:
  geth: ethereum/client-go:v1.14.0
  nethermind: nethermind/nethermind:1.26.0
`)

	images, err := LoadImages(path)
	if err != nil {
		t.Fatalf("LoadImages: %v", err)
	}
	if images["geth"] != "ethereum/client-go:v1.14.0" {
		t.Errorf("unexpected geth image: %q", images["geth"])
	}
	if len(images) != 2 {
		t.Errorf("expected 2 images, got %d", len(images))
	}
}

func TestLoadImagesMissingFile(t *testing.T) {
	if _, err := LoadImages(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadImagesEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "images.yaml", "images: {}\n")
	if _, err := LoadImages(path); err == nil {
		t.Error("expected error for empty images map")
	}
}

func TestMergeImageOverrides(t *testing.T) {
	images := Images{"geth": "a", "reth": "b"}

	tests := []struct {
		name string
		bulk string
		want Images
		err  bool
	}{
		{name: "empty bulk keeps images", bulk: "", want: Images{"geth": "a", "reth": "b"}},
		{name: "default keeps configured", bulk: `{"geth":"default"}`, want: Images{"geth": "a", "reth": "b"}},
		{name: "override replaces", bulk: `{"geth":"c"}`, want: Images{"geth": "c", "reth": "b"}},
		{name: "new client added", bulk: `{"besu":"d"}`, want: Images{"geth": "a", "reth": "b", "besu": "d"}},
		{name: "bad json", bulk: `{`, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeImageOverrides(images, tt.bulk)
			if tt.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("MergeImageOverrides: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d images, got %d", len(tt.want), len(got))
			}
			for client, image := range tt.want {
				if got[client] != image {
					t.Errorf("%s: expected %q, got %q", client, image, got[client])
				}
			}
		})
	}
}

func TestLoadRoots(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "roots.yaml", `
roots:
  - path: tests/plain
  - path: tests/stateful
    genesis: genesis/mainnet.json
`)

	roots, err := LoadRoots(path)
	if err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].Genesis != "" {
		t.Errorf("expected empty genesis for first root, got %q", roots[0].Genesis)
	}
	if roots[1].Genesis != "genesis/mainnet.json" {
		t.Errorf("unexpected genesis: %q", roots[1].Genesis)
	}
}

func TestLoadRootsRejectsMissingPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "roots.yaml", "roots:\n  - genesis: g.json\n")
	if _, err := LoadRoots(path); err == nil {
		t.Error("expected error for root without path")
	}
}

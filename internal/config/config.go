// Package config loads the run configuration files: the client→image map
// and the structured list of test roots.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestRoot pairs a workload root path with an optional chain-genesis
// artifact bound to every scenario discovered under it.
type TestRoot struct {
	Path    string `yaml:"path"`
	Genesis string `yaml:"genesis,omitempty"`
}

// Images maps a client id to the container image/version used to run it.
type Images map[string]string

type imagesFile struct {
	Images Images `yaml:"images"`
}

// LoadImages reads a client→image map from a YAML file of the form:
//
//	images:
//	  geth: ethereum/client-go:stable
//	  nethermind: nethermind/nethermind:latest
func LoadImages(path string) (Images, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("images file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading images file: %w", err)
	}

	var parsed imagesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing images file: %w", err)
	}
	if len(parsed.Images) == 0 {
		return nil, fmt.Errorf("images file %s declares no images", path)
	}

	return parsed.Images, nil
}

// MergeImageOverrides applies a JSON client→image map (the --image-bulk
// flag) on top of the loaded images. The literal value "default" keeps
// the configured image.
func MergeImageOverrides(images Images, bulk string) (Images, error) {
	if bulk == "" {
		return images, nil
	}

	var overrides map[string]string
	if err := json.Unmarshal([]byte(bulk), &overrides); err != nil {
		return nil, fmt.Errorf("error parsing image overrides: %w", err)
	}

	merged := make(Images, len(images))
	for client, image := range images {
		merged[client] = image
	}
	for client, image := range overrides {
		if image == "" || image == "default" {
			continue
		}
		merged[client] = image
	}

	return merged, nil
}

type rootsFile struct {
	Roots []TestRoot `yaml:"roots"`
}

// LoadRoots reads a structured test-root list from a YAML file of the form:
//
//	roots:
//	  - path: tests/plain
//	  - path: tests/stateful
//	    genesis: genesis/mainnet.json
func LoadRoots(path string) ([]TestRoot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("roots file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading roots file: %w", err)
	}

	var parsed rootsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing roots file: %w", err)
	}
	if len(parsed.Roots) == 0 {
		return nil, fmt.Errorf("roots file %s declares no roots", path)
	}
	for i, root := range parsed.Roots {
		if root.Path == "" {
			return nil, fmt.Errorf("roots file %s: entry %d has no path", path, i)
		}
	}

	return parsed.Roots, nil
}

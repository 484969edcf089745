package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ManifestName is the per-directory ordering manifest for a stateful
// group. When present it takes precedence over filesystem enumeration.
const ManifestName = "scenario_order.json"

// manifestEntry is one {index, name} pair of the ordering manifest.
type manifestEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

const manifestSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["index", "name"],
		"properties": {
			"index": {"type": "integer"},
			"name": {"type": "string", "minLength": 1}
		},
		"additionalProperties": false
	}
}`

var manifestSchema = jsonschema.MustCompileString(ManifestName, manifestSchemaJSON)

// loadManifest reads and validates dir's ordering manifest, returning the
// scenario names sorted by ascending index. It returns (nil, nil) when no
// manifest exists. Duplicate names keep their first occurrence.
func loadManifest(dir string) ([]string, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ordering manifest %s: %w", path, err)
	}

	// Schema validation needs numbers decoded as json.Number.
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse ordering manifest %s: %w", path, err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid ordering manifest %s: %w", path, err)
	}

	var manifest []manifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode ordering manifest %s: %w", path, err)
	}

	sort.SliceStable(manifest, func(i, j int) bool { return manifest[i].Index < manifest[j].Index })

	seen := make(map[string]bool, len(manifest))
	names := make([]string, 0, len(manifest))
	for _, entry := range manifest {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		names = append(names, entry.Name)
	}
	return names, nil
}

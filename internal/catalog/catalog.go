package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gasbench/benchmatrix/internal/config"
	"github.com/gasbench/benchmatrix/internal/output"
)

// DefaultExtension is the workload payload extension.
const DefaultExtension = ".txt"

// Names pinned to the edges of a stateful group when no ordering
// manifest exists.
var (
	bootstrapNames = map[string]bool{"funding": true, "global_setup": true}
	teardownNames  = map[string]bool{"global_cleanup": true}
)

// Catalog discovers scenario entries. Two passes over an unchanged
// filesystem produce identical orderings.
type Catalog struct {
	// Extension filters workload files; DefaultExtension when empty.
	Extension string

	// Console receives discovery warnings; may be nil.
	Console *output.Console
}

func (c *Catalog) ext() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}

func (c *Catalog) warnf(format string, args ...interface{}) {
	if c.Console != nil {
		c.Console.Warnf(format, args...)
	}
}

// Discover walks every root and returns a flat, duplicate-free,
// order-preserving list of entries with the root's genesis reference
// carried through.
func (c *Catalog) Discover(roots []config.TestRoot) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	appendEntry := func(e Entry) {
		if seen[e.Path] {
			return
		}
		seen[e.Path] = true
		entries = append(entries, e)
	}

	for _, root := range roots {
		info, err := os.Stat(root.Path)
		if err != nil {
			return nil, fmt.Errorf("stat test root %s: %w", root.Path, err)
		}

		if !info.IsDir() {
			appendEntry(Entry{Path: root.Path, Genesis: root.Genesis, Measured: true})
			continue
		}

		if isStatefulGroup(root.Path) {
			group, err := c.discoverGroup(root.Path, root.Genesis)
			if err != nil {
				return nil, err
			}
			for _, e := range group {
				appendEntry(e)
			}
			continue
		}

		flat, err := c.discoverFlat(root.Path, root.Genesis)
		if err != nil {
			return nil, err
		}
		for _, e := range flat {
			appendEntry(e)
		}
	}

	return entries, nil
}

// isStatefulGroup reports whether dir is a multi-phase scenario
// directory, identified by a testing subdirectory.
func isStatefulGroup(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, string(PhaseTesting)))
	return err == nil && info.IsDir()
}

// discoverFlat recursively enumerates workload files under dir in
// sorted order.
func (c *Catalog) discoverFlat(dir, genesis string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), c.ext()) {
			return nil
		}
		entries = append(entries, Entry{Path: path, Genesis: genesis, Measured: true})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk test root %s: %w", dir, err)
	}
	// WalkDir visits lexically, but sort anyway so the ordering
	// contract does not depend on traversal details.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// discoverGroup resolves a stateful directory into an ordered
// setup→testing→cleanup sequence per scenario name.
func (c *Catalog) discoverGroup(dir, genesis string) ([]Entry, error) {
	names, fromManifest, err := c.orderedNames(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, name := range names {
		setup := filepath.Join(dir, string(PhaseSetup), name+c.ext())
		testing := filepath.Join(dir, string(PhaseTesting), name+c.ext())
		cleanup := filepath.Join(dir, string(PhaseCleanup), name+c.ext())

		if fromManifest && !fileExists(testing) {
			c.warnf("scenario %q listed in ordering manifest has no testing file under %s; dropping measured phase", name, dir)
		}

		if fileExists(setup) {
			entries = append(entries, Entry{Path: setup, Phase: PhaseSetup, Genesis: genesis})
		}
		if fileExists(testing) {
			entries = append(entries, Entry{Path: testing, Phase: PhaseTesting, Genesis: genesis, Measured: true})
		}
		if fileExists(cleanup) {
			entries = append(entries, Entry{Path: cleanup, Phase: PhaseCleanup, Genesis: genesis})
		}
	}
	return entries, nil
}

// orderedNames returns the scenario names of a stateful group in
// execution order. An ordering manifest takes precedence; otherwise the
// union of phase file stems is sorted lexicographically with bootstrap
// names pinned first and teardown names pinned last.
func (c *Catalog) orderedNames(dir string) (names []string, fromManifest bool, err error) {
	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, false, err
	}
	if manifest != nil {
		return manifest, true, nil
	}

	set := make(map[string]bool)
	for _, phase := range []Phase{PhaseSetup, PhaseTesting, PhaseCleanup} {
		stems, err := c.phaseStems(filepath.Join(dir, string(phase)))
		if err != nil {
			return nil, false, err
		}
		for _, stem := range stems {
			set[stem] = true
		}
	}

	for name := range set {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := orderRank(names[i]), orderRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names, false, nil
}

func orderRank(name string) int {
	switch {
	case bootstrapNames[name]:
		return 0
	case teardownNames[name]:
		return 2
	default:
		return 1
	}
}

// phaseStems lists the file stems in one phase directory, sorted.
// A missing phase directory is not an error.
func (c *Catalog) phaseStems(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read phase dir %s: %w", dir, err)
	}

	var stems []string
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), c.ext()) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(item.Name(), c.ext()))
	}
	sort.Strings(stems)
	return stems, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

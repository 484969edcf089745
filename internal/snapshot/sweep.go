package snapshot

import (
	"os"
	"path/filepath"
	"strings"
)

// SweepStale clears overlay mounts left behind by crashed prior
// invocations: every active mount point under the runtime root that is
// not registered with this manager gets the full unmount ladder, and its
// scratch directories are removed on success. Safe to call redundantly;
// a second call with nothing to do is a no-op.
func (m *Manager) SweepStale() error {
	active, err := m.Mounter.ActiveUnder(m.RuntimeRoot)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(m.mounts))
	for _, overlay := range m.mounts {
		live[overlay.Merged] = true
	}

	for _, merged := range active {
		if live[merged] {
			continue
		}
		m.debugf("sweeping stale overlay mount %s", merged)
		if !m.release(merged) {
			m.warnf("stale overlay mount %s could not be cleared", merged)
			continue
		}
		m.removeStaleScratch(merged)
	}
	return nil
}

// removeStaleScratch removes the <client>/<token> directory containing a
// swept merged mount point, provided it follows the runtime layout.
func (m *Manager) removeStaleScratch(merged string) {
	if filepath.Base(merged) != "merged" {
		return
	}
	base := filepath.Dir(merged)
	rel, err := filepath.Rel(m.RuntimeRoot, base)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if err := os.RemoveAll(base); err != nil {
		m.warnf("remove stale overlay scratch %s: %v", base, err)
	}
}

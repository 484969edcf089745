// Package snapshot prepares isolated copy-on-write views of a client's
// pre-seeded state and guarantees their teardown.
package snapshot

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gasbench/benchmatrix/internal/output"
)

// ResolutionError reports that no candidate directory held snapshot
// content for a client.
type ResolutionError struct {
	Client   string
	Network  string
	Searched []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no snapshot source with content for client %q network %q (searched %s)",
		e.Client, e.Network, strings.Join(e.Searched, ", "))
}

// MountError reports that the overlay could not be mounted after the
// privileged fallback.
type MountError struct {
	Merged string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount overlay at %s: %v", e.Merged, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// Overlay is one live copy-on-write view.
type Overlay struct {
	Client string
	Token  string
	Lower  string
	Upper  string
	Work   string
	Merged string
}

// Manager resolves snapshot sources and owns the overlay mount registry.
// At most one overlay is live per client.
type Manager struct {
	// SourceRoot locates the pre-seeded state; "{client}" and
	// "{network}" placeholders are substituted before the precedence
	// search runs.
	SourceRoot string

	// RuntimeRoot holds the per-launch merged/upper/work directories.
	RuntimeRoot string

	Mounter Mounter
	Console *output.Console

	mounts map[string]*Overlay
}

// NewManager creates a snapshot manager rooted at sourceRoot with
// scratch space under runtimeRoot.
func NewManager(sourceRoot, runtimeRoot string, mounter Mounter, console *output.Console) *Manager {
	return &Manager{
		SourceRoot:  sourceRoot,
		RuntimeRoot: runtimeRoot,
		Mounter:     mounter,
		Console:     console,
		mounts:      make(map[string]*Overlay),
	}
}

// Active returns the live overlay for a client, if any.
func (m *Manager) Active(client string) (*Overlay, bool) {
	o, ok := m.mounts[client]
	return o, ok
}

// Prepare resolves the lower-layer source for client/network, allocates
// a fresh overlay identity and mounts it, returning the merged path to
// hand to the client as its data directory.
func (m *Manager) Prepare(client, network string) (string, error) {
	if _, ok := m.mounts[client]; ok {
		return "", fmt.Errorf("client %s already has a live overlay", client)
	}

	lower, err := m.resolveLower(client, network)
	if err != nil {
		return "", err
	}

	token := newToken()
	base := filepath.Join(m.RuntimeRoot, client, token)
	overlay := &Overlay{
		Client: client,
		Token:  token,
		Lower:  lower,
		Upper:  filepath.Join(base, "upper"),
		Work:   filepath.Join(base, "work"),
		Merged: filepath.Join(base, "merged"),
	}

	for _, dir := range []string{overlay.Upper, overlay.Work, overlay.Merged} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create overlay dir %s: %w", dir, err)
		}
	}

	if err := m.Mounter.Mount(overlay.Lower, overlay.Upper, overlay.Work, overlay.Merged); err != nil {
		m.removeScratch(overlay)
		return "", &MountError{Merged: overlay.Merged, Err: err}
	}

	m.mounts[client] = overlay
	m.debugf("mounted overlay for %s: lower=%s merged=%s", client, overlay.Lower, overlay.Merged)
	return overlay.Merged, nil
}

// resolveLower applies the precedence search: bare source root (only
// when it is not scoped by a network or client subdirectory), then
// network+client, then network only (unless a client subdirectory exists
// there), then client only. The first candidate with content wins.
func (m *Manager) resolveLower(client, network string) (string, error) {
	root := strings.NewReplacer("{client}", client, "{network}", network).Replace(m.SourceRoot)

	var searched []string
	consider := func(dir string) bool {
		searched = append(searched, dir)
		return hasContent(dir)
	}

	scoped := dirExists(filepath.Join(root, client)) ||
		(network != "" && dirExists(filepath.Join(root, network)))
	if !scoped && consider(root) {
		return root, nil
	}
	if network != "" {
		netClient := filepath.Join(root, network, client)
		if consider(netClient) {
			return netClient, nil
		}
		netOnly := filepath.Join(root, network)
		if !dirExists(netClient) && consider(netOnly) {
			return netOnly, nil
		}
	}
	clientOnly := filepath.Join(root, client)
	if consider(clientOnly) {
		return clientOnly, nil
	}

	return "", &ResolutionError{Client: client, Network: network, Searched: searched}
}

// Cleanup unmounts the client's overlay with escalating strategies and
// removes the scratch directories once the mount is gone. An unmount
// that cannot be cleared is a warning, not a fatal error: the scratch
// space is kept to avoid destroying data still in use.
func (m *Manager) Cleanup(client string) error {
	overlay, ok := m.mounts[client]
	if !ok {
		return nil
	}
	delete(m.mounts, client)

	if m.release(overlay.Merged) {
		m.removeScratch(overlay)
		return nil
	}

	m.warnf("overlay for %s at %s could not be unmounted; leaving scratch dirs in place", client, overlay.Merged)
	return nil
}

// release runs the unmount ladder: plain, lazy, kill holders then retry.
// It reports whether the mount point is gone.
func (m *Manager) release(merged string) bool {
	mounted, err := m.Mounter.IsMounted(merged)
	if err != nil {
		m.warnf("cannot inspect mount state of %s: %v", merged, err)
	} else if !mounted {
		return true
	}

	if err := m.Mounter.Unmount(merged, false); err == nil {
		return true
	}
	m.debugf("plain unmount of %s failed, trying lazy", merged)
	if err := m.Mounter.Unmount(merged, true); err == nil {
		return true
	}
	m.debugf("lazy unmount of %s failed, terminating holders", merged)
	if err := m.Mounter.KillHolders(merged); err != nil {
		m.debugf("terminating holders of %s: %v", merged, err)
	}
	if err := m.Mounter.Unmount(merged, false); err == nil {
		return true
	}

	mounted, err = m.Mounter.IsMounted(merged)
	return err == nil && !mounted
}

// removeScratch deletes the overlay's per-launch directories.
func (m *Manager) removeScratch(overlay *Overlay) {
	base := filepath.Join(m.RuntimeRoot, overlay.Client, overlay.Token)
	if err := os.RemoveAll(base); err != nil {
		m.warnf("remove overlay scratch %s: %v", base, err)
	}
}

func (m *Manager) warnf(format string, args ...interface{}) {
	if m.Console != nil {
		m.Console.Warnf(format, args...)
	}
}

func (m *Manager) debugf(format string, args ...interface{}) {
	if m.Console != nil {
		m.Console.Debugf(format, args...)
	}
}

// newToken allocates a unique overlay identity so overlapping
// invocations never collide on a merged path.
func newToken() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(buf))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// hasContent reports whether dir exists and contains at least one entry.
func hasContent(dir string) bool {
	items, err := os.ReadDir(dir)
	return err == nil && len(items) > 0
}

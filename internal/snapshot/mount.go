package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Mounter abstracts overlay mount plumbing so the manager's resolution,
// registry and escalation logic stay testable without privileges.
type Mounter interface {
	// Mount establishes an overlay of lower at merged using upper/work
	// as the writable layers.
	Mount(lower, upper, work, merged string) error

	// Unmount detaches merged. When lazy is set a detach-style unmount
	// is requested.
	Unmount(merged string, lazy bool) error

	// KillHolders terminates processes keeping merged busy.
	KillHolders(merged string) error

	// IsMounted reports whether merged is an active mount point.
	IsMounted(merged string) (bool, error)

	// ActiveUnder lists active mount points below root.
	ActiveUnder(root string) ([]string, error)
}

// execMounter shells out to mount(8)/umount(8), first unprivileged and
// then through sudo, mirroring how the benchmark hosts are provisioned.
type execMounter struct{}

// NewMounter returns the system overlay mounter.
func NewMounter() Mounter { return &execMounter{} }

// runEscalated runs the command as-is, retrying once under sudo when the
// plain invocation fails and sudo is available.
func runEscalated(name string, args ...string) error {
	plain := exec.Command(name, args...)
	out, err := plain.CombinedOutput()
	if err == nil {
		return nil
	}

	if os.Geteuid() != 0 {
		if _, lookErr := exec.LookPath("sudo"); lookErr == nil {
			sudo := exec.Command("sudo", append([]string{name}, args...)...)
			sudoOut, sudoErr := sudo.CombinedOutput()
			if sudoErr == nil {
				return nil
			}
			return fmt.Errorf("%s failed unprivileged (%s) and under sudo: %w: %s",
				name, strings.TrimSpace(string(out)), sudoErr, strings.TrimSpace(string(sudoOut)))
		}
	}
	return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
}

func (m *execMounter) Mount(lower, upper, work, merged string) error {
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work)
	return runEscalated("mount", "-t", "overlay", "overlay", "-o", opts, merged)
}

func (m *execMounter) Unmount(merged string, lazy bool) error {
	args := []string{merged}
	if lazy {
		args = []string{"-l", merged}
	}
	return runEscalated("umount", args...)
}

func (m *execMounter) KillHolders(merged string) error {
	return runEscalated("fuser", "-km", merged)
}

func (m *execMounter) IsMounted(merged string) (bool, error) {
	mounts, err := readProcMounts()
	if err != nil {
		return false, err
	}
	for _, point := range mounts {
		if point == merged {
			return true, nil
		}
	}
	return false, nil
}

func (m *execMounter) ActiveUnder(root string) ([]string, error) {
	mounts, err := readProcMounts()
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	var active []string
	for _, point := range mounts {
		if strings.HasPrefix(point, prefix) {
			active = append(active, point)
		}
	}
	return active, nil
}

// readProcMounts lists the mount points in /proc/mounts.
func readProcMounts() ([]string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("open /proc/mounts: %w", err)
	}
	defer f.Close()

	var points []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 {
			points = append(points, fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan /proc/mounts: %w", err)
	}
	return points, nil
}

package scheduler

import (
	"context"
	"os/exec"
)

// CleanupNow releases everything a run may have left behind: the
// running instance, its snapshot overlay, and any stale overlays from
// earlier invocations. It is registered for both signal delivery and
// normal exit, and calling it with nothing running is a no-op.
func (s *Scheduler) CleanupNow(ctx context.Context) {
	s.mu.Lock()
	inst := s.current
	s.current = nil
	s.mu.Unlock()

	if inst != nil {
		s.warnf("cleaning up running %s instance", inst.Client)
		s.Nodes.Teardown(ctx, inst, s.Snapshots != nil)
		if s.Snapshots != nil {
			if err := s.Snapshots.Cleanup(inst.Client); err != nil {
				s.warnf("release snapshot for %s: %v", inst.Client, err)
			}
		}
	}

	if s.Snapshots != nil {
		if err := s.Snapshots.SweepStale(); err != nil {
			s.warnf("sweep stale overlays: %v", err)
		}
	}
}

// dropPageCache flushes dirty pages and asks the kernel to drop its
// caches so a measured scenario starts cold. Both steps are
// best-effort: on hosts where this needs privileges we warn and move
// on.
func (s *Scheduler) dropPageCache(ctx context.Context) {
	if _, err := s.Runner.Run(ctx, "", "sync"); err != nil {
		s.warnf("sync before cache drop: %v", err)
		return
	}

	dropCmd := []string{"sh", "-c", "echo 3 > /proc/sys/vm/drop_caches"}
	if _, err := s.Runner.Run(ctx, "", dropCmd[0], dropCmd[1:]...); err != nil {
		if _, sudoErr := exec.LookPath("sudo"); sudoErr == nil {
			if _, err := s.Runner.Run(ctx, "", "sudo", dropCmd...); err == nil {
				return
			}
		}
		s.warnf("drop page cache: %v", err)
	}
}

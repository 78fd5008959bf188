//go:build linux

// Package priority implements the optional resource-priority knob described
// in §5: an OS policy hint, never load-bearing for protocol correctness.
package priority

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Elevate sets this process's niceness to nice (an absolute value, not a
// delta), best-effort. Negative values raise priority (require appropriate
// privileges);
// failures are returned but are never fatal to the caller.
func Elevate(nice int) error {
	pid := os.Getpid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, nice); err != nil {
		return fmt.Errorf("setpriority(pid=%d, nice=%d): %w", pid, nice, err)
	}
	return nil
}

// Restore resets this process's priority back to the default niceness.
func Restore() error {
	pid := os.Getpid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, 0); err != nil {
		return fmt.Errorf("setpriority(pid=%d, nice=0): %w", pid, err)
	}
	return nil
}

// ElevateNamed best-effort elevates every running process whose
// /proc/<pid>/comm matches one of names (the -driver=NAME helper
// processes from §6); it never returns an error, only logs them via the
// returned slice, since this is strictly an OS policy hint (§5).
func ElevateNamed(nice int, names []string) []error {
	var errs []error
	if len(names) == 0 {
		return nil
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return []error{fmt.Errorf("read /proc: %w", err)}
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))
		for _, want := range names {
			if name == want {
				if err := unix.Setpriority(unix.PRIO_PROCESS, pid, nice); err != nil {
					errs = append(errs, fmt.Errorf("setpriority(%s, pid=%d): %w", name, pid, err))
				}
			}
		}
	}
	return errs
}

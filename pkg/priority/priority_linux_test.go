//go:build linux

package priority_test

import (
	"testing"

	"github.com/RTEdbg/RTEgdbData/pkg/priority"
)

func TestElevateAndRestore(t *testing.T) {
	// Raising niceness to 1 never requires elevated privileges; Restore
	// then lowers it back to 0, which Linux allows only with CAP_SYS_NICE
	// or a permissive RLIMIT_NICE.
	if err := priority.Elevate(1); err != nil {
		t.Fatalf("Elevate(1): %v", err)
	}
	if err := priority.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
}

func TestElevateNamedNoMatches(t *testing.T) {
	if errs := priority.ElevateNamed(1, []string{"definitely-not-a-real-process-name"}); len(errs) != 0 {
		t.Fatalf("ElevateNamed with no matching process: %v", errs)
	}
}

func TestElevateNamedEmptyList(t *testing.T) {
	if errs := priority.ElevateNamed(1, nil); errs != nil {
		t.Fatalf("ElevateNamed(nil) = %v, want nil", errs)
	}
}

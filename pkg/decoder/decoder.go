// Package decoder invokes the external decoder batch file named by
// -decode=FILE after a successful snapshot. The decoder itself (turning the
// binary image into human-readable log text) is out of scope for this
// module; this is just the process-invocation collaborator.
package decoder

import (
	"fmt"
	"os/exec"
)

// Run executes the batch/script file at path, passing binPath (the just
// written snapshot file) as its sole argument, and returns combined
// output for logging.
func Run(path string, binPath string) ([]byte, error) {
	cmd := exec.Command(path, binPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("run decoder %s: %w", path, err)
	}
	return out, nil
}

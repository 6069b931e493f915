//go:build !unix

package runtime

import "os/exec"

// Process groups are a unix concept; elsewhere cancellation falls back to
// exec.CommandContext's default kill of the direct child.
func setProcGroup(_ *exec.Cmd) {}

func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

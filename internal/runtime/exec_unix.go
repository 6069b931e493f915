//go:build unix

package runtime

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the command in its own process group so cancellation
// can reach the shell's children, and wires Cancel to group kill.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}
}

// killProcGroup terminates the command's whole process group.
func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return nil // already gone
	}
	return err
}

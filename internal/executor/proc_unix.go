//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the command in its own process group and kills the
// whole group on cancellation, so helper processes spawned by the tool die too.
func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}

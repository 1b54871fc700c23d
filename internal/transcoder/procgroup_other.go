//go:build !unix

package transcoder

import (
	"os/exec"
	"time"
)

func setProcessGroup(cmd *exec.Cmd, grace time.Duration) (release func()) {
	cmd.WaitDelay = grace
	return func() {}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

//go:build unix

package transcoder

import (
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// signalGroup sends sig to every process in the group led by pid.
var signalGroup = func(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// setProcessGroup starts cmd in its own process group and replaces the
// default context cancellation (SIGKILL to the leader only) with SIGTERM to
// the whole group, escalating to SIGKILL after grace. The returned release
// must be called once cmd has been waited for; it cancels a pending SIGKILL
// so that a reaped group id is never signalled.
func setProcessGroup(cmd *exec.Cmd, grace time.Duration) (release func()) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true

	var (
		mu     sync.Mutex
		timer  *time.Timer
		reaped bool
	)
	cmd.Cancel = func() error {
		pid := cmd.Process.Pid
		if err := signalGroup(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}

		mu.Lock()
		defer mu.Unlock()
		if reaped {
			return nil
		}
		timer = time.AfterFunc(grace, func() {
			mu.Lock()
			defer mu.Unlock()
			if !reaped {
				_ = signalGroup(pid, syscall.SIGKILL)
			}
		})
		return nil
	}
	// Wait gives up on the leader and its pipes shortly after the group kill.
	cmd.WaitDelay = grace + time.Second

	return func() {
		mu.Lock()
		defer mu.Unlock()
		reaped = true
		if timer != nil {
			timer.Stop()
		}
	}
}

// killProcessGroup sends SIGKILL to the group led by cmd.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := signalGroup(cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return cmd.Process.Kill()
	}
	return nil
}

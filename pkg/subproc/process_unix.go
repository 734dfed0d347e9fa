//go:build !windows

package subproc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Children get their own process group so signals reach anything they fork.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return signalGroup(p.Pid, syscall.SIGTERM)
}

func kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	return signalGroup(p.Pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

//go:build windows

package subproc

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

// Windows has no SIGTERM; both steps kill the process.
func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

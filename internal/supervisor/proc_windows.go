//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

// Windows has no cooperative termination signal for arbitrary processes;
// both passes kill outright.
func signalTerm(p *os.Process) {
	if p == nil {
		return
	}
	_ = p.Kill()
}

func killProcess(p *os.Process) {
	if p == nil {
		return
	}
	_ = p.Kill()
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

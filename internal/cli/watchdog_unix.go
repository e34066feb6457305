//go:build unix

package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

const parentPollInterval = time.Second

// startParentWatchdog exits the process when the direct parent dies, so
// an interrupted outer shell or agent cannot leave a planner subprocess
// running detached. Reparenting (ppid change, typically to init) is the
// death signal; tracked subprocesses are swept before exiting.
func startParentWatchdog(sup *supervisor.Supervisor, logger *slog.Logger) {
	parent := os.Getppid()
	if parent <= 1 {
		return
	}
	go func() {
		for {
			time.Sleep(parentPollInterval)
			ppid := os.Getppid()
			if ppid == parent {
				continue
			}
			logger.Warn("parent process exited; stopping",
				"parent_pid", parent, "current_ppid", ppid)
			sup.Sweep()
			os.Exit(exitOrphaned)
		}
	}()
}

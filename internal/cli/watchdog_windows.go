//go:build windows

package cli

import (
	"log/slog"

	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

// startParentWatchdog is a no-op on Windows, which has no reparenting
// signal to watch; orphaned subprocesses are covered by the tail sweep on
// the next invocation.
func startParentWatchdog(sup *supervisor.Supervisor, logger *slog.Logger) {}

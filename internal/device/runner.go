package device

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

// Runner executes external commands and returns their stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec. Children register with the
// bounded-call scope on ctx, so an expired deadline can reap them.
type ExecRunner struct {
	logger *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates a new command runner
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command and returns its stdout. Stderr is folded into
// the error on failure.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", name, "args", args)
	if err := supervisor.RunCmd(ctx, cmd); err != nil {
		detail := truncate(strings.TrimSpace(stderr.String()), 512)
		if detail != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

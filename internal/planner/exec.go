package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

// ExecPlanner drives a backend subprocess. Each round-trip spawns the
// configured command, writes one JSON request to its stdin, and reads
// one JSON payload from its stdout. The process joins the supervisor
// scope of the calling operation, so a deadline tears it down along
// with everything else the operation started.
type ExecPlanner struct {
	provider Provider
	logger   *slog.Logger
}

// NewExecPlanner builds a subprocess planner for the given provider.
func NewExecPlanner(p Provider, logger *slog.Logger) *ExecPlanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecPlanner{provider: p, logger: logger}
}

type execStartRequest struct {
	Op string `json:"op"`
	StartRequest
}

type execContinueRequest struct {
	Op string `json:"op"`
	ContinueRequest
}

func (e *ExecPlanner) Start(ctx context.Context, req StartRequest) (*Plan, error) {
	return e.roundTrip(ctx, execStartRequest{Op: "start_task", StartRequest: req})
}

func (e *ExecPlanner) Continue(ctx context.Context, req ContinueRequest) (*Plan, error) {
	return e.roundTrip(ctx, execContinueRequest{Op: "continue_task", ContinueRequest: req})
}

func (e *ExecPlanner) roundTrip(ctx context.Context, req any) (*Plan, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode planner request: %w", err)
	}

	argv := e.provider.Command
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.provider.WorkingDir
	cmd.Env = e.env()
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("planner exec round-trip", "provider", e.provider.Name, "command", argv[0])
	if err := supervisor.RunCmd(ctx, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s",
			ErrAdapter, e.provider.Name, err, stderrTail(stderr.String()))
	}
	return decodePlan(stdout.Bytes(), e.provider.Name)
}

// env extends the inherited environment with the provider's settings so
// the backend needs no configuration of its own.
func (e *ExecPlanner) env() []string {
	env := os.Environ()
	env = append(env, "GUIAGENT_PROVIDER="+e.provider.Name)
	if e.provider.Model != "" {
		env = append(env, "GUIAGENT_MODEL="+e.provider.Model)
	}
	if e.provider.BaseURL != "" {
		env = append(env, "GUIAGENT_API_BASE="+e.provider.BaseURL)
	}
	if e.provider.KeyEnv != "" && e.provider.APIKey != "" {
		env = append(env, e.provider.KeyEnv+"="+e.provider.APIKey)
	}
	return env
}

// decodePlan parses a backend payload and promotes embedded error
// messages to adapter errors.
func decodePlan(data []byte, provider string) (*Plan, error) {
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &payload); err != nil {
		return nil, fmt.Errorf("%w: %s returned malformed JSON: %v", ErrAdapter, provider, err)
	}
	if msg := stringField(payload, "error"); msg != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrAdapter, provider, msg)
	}
	return PlanFromPayload(payload), nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	if s == "" {
		return "(no stderr)"
	}
	return s
}

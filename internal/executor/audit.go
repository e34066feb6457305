package executor

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// auditLogger records one structured entry per operation invocation and
// one per outcome, so every call through the Orchestrator leaves a
// traceable pair in the log stream.
type auditLogger struct {
	logger *slog.Logger
	clock  clockwork.Clock
}

func newAuditLogger(logger *slog.Logger, clock clockwork.Clock) *auditLogger {
	return &auditLogger{logger: logger, clock: clock}
}

// begin logs the invocation and returns the finisher that logs the
// outcome. The finisher reads the Result after the operation has filled
// it, so it is safe to defer at the top of an operation.
func (al *auditLogger) begin(ctx context.Context, operation string) func(*Result) {
	start := al.clock.Now()
	al.logger.DebugContext(ctx, "operation_call", "operation", operation)
	return func(res *Result) {
		attrs := []any{
			"operation", operation,
			"success", res.Success,
			"duration_ms", al.clock.Now().Sub(start).Milliseconds(),
		}
		if res.SessionID != "" {
			attrs = append(attrs, "session_id", res.SessionID)
		}
		if res.DeviceID != "" {
			attrs = append(attrs, "device_id", res.DeviceID)
		}
		if res.Provider != "" {
			attrs = append(attrs, "provider", res.Provider)
		}
		if res.NextAction != "" {
			attrs = append(attrs, "next_action", res.NextAction)
		}
		if res.Success {
			al.logger.InfoContext(ctx, "operation_result", attrs...)
			return
		}
		attrs = append(attrs, "error", res.Error, "message", res.Message)
		if res.TimedOut {
			attrs = append(attrs, "timed_out", true,
				"terminated_subprocesses", len(res.TerminatedSubprocesses))
		}
		al.logger.WarnContext(ctx, "operation_result", attrs...)
	}
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

// Tool names exposed to MCP clients.
const (
	toolExecute   = "task.execute"
	toolContinue  = "task.continue"
	toolTap       = "device.tap"
	toolStatus    = "device.status"
	toolDevices   = "device.list"
	toolSessions  = "session.list"
	toolProviders = "provider.list"
)

// registerTools declares every tool schema and binds its handler.
func (s *Server) registerTools() {
	executeTool := mcp.NewTool(toolExecute,
		mcp.WithDescription("Start a new automation task on a device and run its first planning round-trip"),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("Natural-language task for the device agent"),
		),
		mcp.WithString("provider",
			mcp.Description("Planning provider name (defaults to the configured provider)"),
		),
		mcp.WithString("device_id",
			mcp.Description("Device serial (defaults to the configured or first attached device)"),
		),
		mcp.WithNumber("max_steps",
			mcp.Description("Step budget forwarded to the planning backend"),
		),
		mcp.WithBoolean("stateless",
			mcp.Description("Run as a minimal single-shot task without persisting a session"),
		),
		mcp.WithObject("extra_info",
			mcp.Description("Opaque hints forwarded to the planning backend"),
		),
		mcp.WithNumber("timeout_sec",
			mcp.Description("Operation deadline in seconds"),
		),
	)
	s.server.AddTool(executeTool, s.handleExecute)

	continueTool := mcp.NewTool(toolContinue,
		mcp.WithDescription("Resume a session: answer a planner question, keep going, or replace the task"),
		mcp.WithString("session_id",
			mcp.Description("Session to resume (defaults to the latest active session)"),
		),
		mcp.WithString("reply",
			mcp.Description("Answer to a planner question"),
		),
		mcp.WithString("task",
			mcp.Description("Replacement task text; step count and history carry over"),
		),
		mcp.WithString("device_id",
			mcp.Description("Device filter used when session_id is omitted"),
		),
		mcp.WithNumber("max_steps",
			mcp.Description("Step budget forwarded to the planning backend"),
		),
		mcp.WithNumber("timeout_sec",
			mcp.Description("Operation deadline in seconds"),
		),
	)
	s.server.AddTool(continueTool, s.handleContinue)

	tapTool := mcp.NewTool(toolTap,
		mcp.WithDescription("Tap a screen coordinate directly, without a planning backend"),
		mcp.WithNumber("x",
			mcp.Required(),
			mcp.Description("X coordinate, pixels or 0..1 ratio"),
		),
		mcp.WithNumber("y",
			mcp.Required(),
			mcp.Description("Y coordinate, pixels or 0..1 ratio"),
		),
		mcp.WithString("space",
			mcp.Description("Coordinate interpretation"),
			mcp.Enum("auto", "pixel", "ratio"),
			mcp.DefaultString("auto"),
		),
		mcp.WithString("device_id",
			mcp.Description("Device serial"),
		),
		mcp.WithNumber("post_delay_ms",
			mcp.Description("Pause after the tap before capturing device state"),
			mcp.DefaultNumber(350),
		),
		mcp.WithNumber("timeout_sec",
			mcp.Description("Operation deadline in seconds"),
		),
	)
	s.server.AddTool(tapTool, s.handleTap)

	statusTool := mcp.NewTool(toolStatus,
		mcp.WithDescription("Report device state and the latest active session"),
		mcp.WithString("device_id",
			mcp.Description("Device serial"),
		),
		mcp.WithNumber("timeout_sec",
			mcp.Description("Operation deadline in seconds"),
		),
	)
	s.server.AddTool(statusTool, s.handleStatus)

	devicesTool := mcp.NewTool(toolDevices,
		mcp.WithDescription("List attached devices"),
	)
	s.server.AddTool(devicesTool, s.handleDevices)

	sessionsTool := mcp.NewTool(toolSessions,
		mcp.WithDescription("List stored sessions"),
		mcp.WithString("device_id",
			mcp.Description("Only sessions for this device"),
		),
	)
	s.server.AddTool(sessionsTool, s.handleSessions)

	providersTool := mcp.NewTool(toolProviders,
		mcp.WithDescription("List planning providers and their readiness"),
	)
	s.server.AddTool(providersTool, s.handleProviders)
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var extra map[string]any
	if raw, ok := request.GetArguments()["extra_info"].(map[string]any); ok {
		extra = raw
	}

	res := s.ops.Execute(ctx, executor.ExecuteRequest{
		Task:      task,
		Provider:  request.GetString("provider", ""),
		DeviceID:  request.GetString("device_id", ""),
		MaxSteps:  request.GetInt("max_steps", 0),
		Stateless: request.GetBool("stateless", false),
		Extra:     extra,
		Timeout:   secondsArg(request),
	})
	return s.resultJSON(res)
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.ops.Continue(ctx, executor.ContinueRequest{
		SessionID: request.GetString("session_id", ""),
		Reply:     request.GetString("reply", ""),
		Task:      request.GetString("task", ""),
		DeviceID:  request.GetString("device_id", ""),
		MaxSteps:  request.GetInt("max_steps", 0),
		Timeout:   secondsArg(request),
	})
	return s.resultJSON(res)
}

func (s *Server) handleTap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := request.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.ops.Tap(ctx, executor.TapRequest{
		DeviceID:  request.GetString("device_id", ""),
		X:         x,
		Y:         y,
		Space:     request.GetString("space", "auto"),
		PostDelay: time.Duration(request.GetInt("post_delay_ms", 350)) * time.Millisecond,
		Timeout:   secondsArg(request),
	})
	return s.resultJSON(res)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.ops.Status(ctx, executor.StatusRequest{
		DeviceID: request.GetString("device_id", ""),
		Timeout:  secondsArg(request),
	})
	return s.resultJSON(res)
}

func (s *Server) handleDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.resultJSON(s.ops.Devices(ctx))
}

func (s *Server) handleSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.resultJSON(s.ops.Sessions(ctx, request.GetString("device_id", "")))
}

func (s *Server) handleProviders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.resultJSON(s.ops.Providers(ctx))
}

// resultJSON serializes an operation result as the tool payload. Failed
// operations are still payloads, not protocol errors; only malformed
// arguments produce tool errors.
func (s *Server) resultJSON(res *executor.Result) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	if !res.Success {
		s.logger.Debug("tool returned failed operation",
			"operation", res.Operation, "error", res.Error)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// secondsArg reads the shared timeout_sec argument.
func secondsArg(request mcp.CallToolRequest) time.Duration {
	sec := request.GetFloat("timeout_sec", 0)
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

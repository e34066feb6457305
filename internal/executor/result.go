package executor

import (
	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
	"github.com/AltairaLabs/guiagent-mcp/internal/device"
	"github.com/AltairaLabs/guiagent-mcp/internal/planner"
	"github.com/AltairaLabs/guiagent-mcp/internal/session"
)

// Result is the uniform payload every operation returns, success or not.
// Fields irrelevant to an operation stay empty and drop from the JSON
// encoding; Success, Operation, and on failure Error plus Message are
// always present.
type Result struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`

	SessionID  string `json:"session_id,omitempty"`
	Task       string `json:"task,omitempty"`
	Provider   string `json:"provider,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Status     string `json:"status,omitempty"`
	StepCount  int    `json:"step_count,omitempty"`
	Caption    string `json:"caption,omitempty"`
	NextAction string `json:"next_action,omitempty"`

	CurrentApp     string                `json:"current_app,omitempty"`
	Notifications  []device.Notification `json:"notifications,omitempty"`
	ScreenSize     *coords.Size          `json:"screen_size,omitempty"`
	Coordinate     *coords.Spec          `json:"coordinate,omitempty"`
	ScreenshotPath string                `json:"screenshot_path,omitempty"`

	Devices   []string           `json:"devices,omitempty"`
	Sessions  []*session.Session `json:"sessions,omitempty"`
	Providers []planner.Status   `json:"providers,omitempty"`

	// Message carries the human-readable explanation; Error carries the
	// stable wire code from the error taxonomy, so callers gate on it
	// without parsing prose.
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	TimedOut               bool    `json:"timed_out,omitempty"`
	TimeoutSec             float64 `json:"timeout_sec,omitempty"`
	TerminatedSubprocesses []int   `json:"terminated_subprocesses,omitempty"`
}

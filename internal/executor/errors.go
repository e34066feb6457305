package executor

import (
	"errors"

	"github.com/AltairaLabs/guiagent-mcp/internal/coords"
	"github.com/AltairaLabs/guiagent-mcp/internal/device"
	"github.com/AltairaLabs/guiagent-mcp/internal/planner"
	"github.com/AltairaLabs/guiagent-mcp/internal/session"
	"github.com/AltairaLabs/guiagent-mcp/internal/supervisor"
)

// Operation errors surfaced through Result.Error.
var (
	// ErrInvalidInput rejects a call before any side effect.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDeviceUnreachable means no usable device could be resolved.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrNoActiveSession means a continuation found nothing to resume.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionTerminal rejects continuation of a finished session.
	ErrSessionTerminal = errors.New("session already terminal")
	// ErrSessionBusy rejects a call while another call holds the session.
	ErrSessionBusy = errors.New("session busy")
	// ErrTapOnly rejects planner operations in tap-only mode.
	ErrTapOnly = errors.New("tap-only mode enabled")
)

// Stable machine-readable codes carried in Result.Error.
const (
	codeInvalidInput      = "invalid_input"
	codeDeviceUnreachable = "device_unreachable"
	codeSessionNotFound   = "session_not_found"
	codeNoActiveSession   = "no_active_session"
	codeSessionTerminal   = "session_terminal"
	codeSessionBusy       = "session_busy"
	codeTapOnly           = "tap_only_mode_enabled"
	codeTimeout           = "timeout"
	codeAdapterFailure    = "adapter_failure"
	codeDeviceCall        = "device_call_failure"
	codeInternal          = "internal_error"
)

// errorCode classifies an operation error into its wire code. Resolution
// failures are checked before transport failures because the former wrap
// the latter.
func errorCode(err error) string {
	switch {
	case errors.Is(err, supervisor.ErrTimedOut):
		return codeTimeout
	case errors.Is(err, ErrTapOnly):
		return codeTapOnly
	case errors.Is(err, ErrSessionBusy):
		return codeSessionBusy
	case errors.Is(err, ErrSessionTerminal):
		return codeSessionTerminal
	case errors.Is(err, ErrNoActiveSession):
		return codeNoActiveSession
	case errors.Is(err, session.ErrNotFound):
		return codeSessionNotFound
	case errors.Is(err, ErrDeviceUnreachable):
		return codeDeviceUnreachable
	case errors.Is(err, device.ErrUnreachable):
		return codeDeviceCall
	case errors.Is(err, planner.ErrAdapter):
		return codeAdapterFailure
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, planner.ErrUnknownProvider),
		errors.Is(err, planner.ErrMissingCredential),
		errors.Is(err, planner.ErrNotConfigured),
		errors.Is(err, coords.ErrScreenSize),
		errors.Is(err, coords.ErrNotFinite),
		errors.Is(err, coords.ErrUnknownSpace):
		return codeInvalidInput
	default:
		return codeInternal
	}
}

// Package planner connects the control plane to vision planning backends.
// A backend receives the task and device context, drives its own model
// loop, and reports back a caption plus what should happen next. The
// package normalizes the loosely shaped backend payloads into Plan values
// and hides the transport (subprocess or HTTP) behind the Planner
// interface.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrAdapter marks failures raised by a planning backend or its
// transport, as opposed to invalid input on our side.
var ErrAdapter = errors.New("adapter failure")

// Next-action values a plan can carry.
const (
	// ActionContinue means the planner wants another round-trip.
	ActionContinue = "continue"
	// ActionNeedsReply means the planner is blocked on user input.
	ActionNeedsReply = "needs_reply"
	// ActionComplete means the task finished.
	ActionComplete = "complete"
)

// Plan is one normalized planning round-trip result.
type Plan struct {
	// Caption summarizes what the planner observed or did.
	Caption string
	// NextAction is one of ActionContinue, ActionNeedsReply, ActionComplete.
	NextAction string
	// Done reports whether the task reached a terminal outcome.
	Done bool
	// ConversationID is the backend's own session handle, echoed back on
	// the next Continue so the backend can resume its model state.
	ConversationID string
	// Raw preserves the backend payload for auditing.
	Raw json.RawMessage
}

// StartRequest opens a new planning conversation.
type StartRequest struct {
	Task     string         `json:"task"`
	DeviceID string         `json:"device_id,omitempty"`
	MaxSteps int            `json:"max_steps,omitempty"`
	Extra    map[string]any `json:"extra_info,omitempty"`
}

// ContinueRequest advances an existing planning conversation.
type ContinueRequest struct {
	ConversationID string         `json:"session_id"`
	DeviceID       string         `json:"device_id,omitempty"`
	Task           string         `json:"task,omitempty"`
	Reply          string         `json:"reply"`
	MaxSteps       int            `json:"max_steps,omitempty"`
	Extra          map[string]any `json:"extra_info,omitempty"`
}

// Planner is a planning backend reachable through some transport.
type Planner interface {
	Start(ctx context.Context, req StartRequest) (*Plan, error)
	Continue(ctx context.Context, req ContinueRequest) (*Plan, error)
}

// PlanFromPayload normalizes a raw backend payload. Backends disagree on
// field names, so both spellings of each field are honored: caption or
// summary, action_type or type, status or state.
func PlanFromPayload(payload map[string]any) *Plan {
	p := &Plan{NextAction: deriveNextAction(payload)}
	p.Done = p.NextAction == ActionComplete

	if s := stringField(payload, "caption"); s != "" {
		p.Caption = s
	} else {
		p.Caption = stringField(payload, "summary")
	}
	p.ConversationID = stringField(payload, "session_id")

	if raw, err := json.Marshal(payload); err == nil {
		p.Raw = raw
	}
	return p
}

// deriveNextAction applies the payload precedence rules: an explicit
// needs-reply action type wins, then a terminal status, else continue.
func deriveNextAction(payload map[string]any) string {
	action := stringField(payload, "action_type")
	if action == "" {
		action = stringField(payload, "type")
	}
	if strings.ToUpper(strings.TrimSpace(action)) == "INFO_ACTION_NEEDS_REPLY" {
		return ActionNeedsReply
	}

	status := stringField(payload, "status")
	if status == "" {
		status = stringField(payload, "state")
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "done", "success":
		return ActionComplete
	}
	return ActionContinue
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

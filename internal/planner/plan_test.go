package planner

import (
	"strings"
	"testing"
)

func TestPlanFromPayloadNextAction(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "needs reply action type",
			payload: map[string]any{"action_type": "INFO_ACTION_NEEDS_REPLY", "status": "completed"},
			want:    ActionNeedsReply,
		},
		{
			name:    "needs reply via type alias",
			payload: map[string]any{"type": "info_action_needs_reply"},
			want:    ActionNeedsReply,
		},
		{
			name:    "completed status",
			payload: map[string]any{"status": "completed"},
			want:    ActionComplete,
		},
		{
			name:    "done status",
			payload: map[string]any{"status": "Done"},
			want:    ActionComplete,
		},
		{
			name:    "success via state alias",
			payload: map[string]any{"state": "success"},
			want:    ActionComplete,
		},
		{
			name:    "running status continues",
			payload: map[string]any{"status": "running"},
			want:    ActionContinue,
		},
		{
			name:    "empty payload continues",
			payload: map[string]any{},
			want:    ActionContinue,
		},
		{
			name:    "unrelated action type falls through to status",
			payload: map[string]any{"action_type": "TAP", "status": "success"},
			want:    ActionComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanFromPayload(tt.payload)
			if plan.NextAction != tt.want {
				t.Errorf("NextAction = %q, want %q", plan.NextAction, tt.want)
			}
			if wantDone := tt.want == ActionComplete; plan.Done != wantDone {
				t.Errorf("Done = %v, want %v", plan.Done, wantDone)
			}
		})
	}
}

func TestPlanFromPayloadFields(t *testing.T) {
	plan := PlanFromPayload(map[string]any{
		"summary":    "opened settings",
		"status":     "running",
		"session_id": "conv-42",
	})
	if plan.Caption != "opened settings" {
		t.Errorf("Caption = %q, want summary fallback", plan.Caption)
	}
	if plan.ConversationID != "conv-42" {
		t.Errorf("ConversationID = %q, want %q", plan.ConversationID, "conv-42")
	}
	if !strings.Contains(string(plan.Raw), "opened settings") {
		t.Errorf("Raw = %s, want original payload preserved", plan.Raw)
	}

	plan = PlanFromPayload(map[string]any{"caption": "primary", "summary": "secondary"})
	if plan.Caption != "primary" {
		t.Errorf("Caption = %q, want caption to beat summary", plan.Caption)
	}
}

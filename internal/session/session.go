package session

import (
	"time"
)

// Status represents the lifecycle state of a session
type Status string

const (
	// StatusRunning indicates the session accepts further continuations
	StatusRunning Status = "running"
	// StatusAwaitingReply indicates the planner asked the caller for input
	StatusAwaitingReply Status = "awaiting_reply"
	// StatusCompleted indicates the task reached its goal
	StatusCompleted Status = "completed"
	// StatusFailed indicates the last call failed before completing
	StatusFailed Status = "failed"
	// StatusTimedOut indicates the last call exceeded its deadline
	StatusTimedOut Status = "timed_out"
)

// Terminal reports whether the session can no longer be resumed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Active reports whether the session counts for latest-active selection.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusAwaitingReply
}

// Mode selects whether a session outlives the call that created it
type Mode string

const (
	// ModeStateful sessions are persisted and resumable across calls
	ModeStateful Mode = "stateful"
	// ModeStateless sessions live only for the duration of one call
	ModeStateless Mode = "stateless"
)

// HistoryCap bounds the number of retained step records per session.
// StepCount keeps counting past the cap; only the oldest records drop.
const HistoryCap = 50

// Step records one completed action call within a session
type Step struct {
	Seq        int       `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Caption    string    `json:"caption,omitempty"`
	NextAction string    `json:"next_action,omitempty"`
}

// Session represents one logical multi-step automation task
type Session struct {
	ID       string `json:"session_id"`
	Task     string `json:"task"`
	Mode     Mode   `json:"mode"`
	DeviceID string `json:"device_id"`
	Provider string `json:"provider"`
	Status   Status `json:"status"`
	// StepCount increments once per completed action call
	StepCount int    `json:"step_count"`
	History   []Step `json:"history,omitempty"`
	// ConversationID is the planner-owned continuation token, opaque here
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Apply folds mut into s, stamping now as the update time. All stores
// mutate through this so step accounting stays in one place.
func (s *Session) Apply(mut Mutation, now time.Time) {
	s.Status = mut.Status
	if mut.Task != nil {
		s.Task = *mut.Task
	}
	if mut.ConversationID != nil {
		s.ConversationID = *mut.ConversationID
	}
	if mut.Step != nil {
		step := *mut.Step
		s.StepCount++
		step.Seq = s.StepCount
		s.History = append(s.History, step)
		if len(s.History) > HistoryCap {
			s.History = s.History[len(s.History)-HistoryCap:]
		}
	}
	s.UpdatedAt = now
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.History != nil {
		out.History = make([]Step, len(s.History))
		copy(out.History, s.History)
	}
	return &out
}

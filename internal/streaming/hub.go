// Package streaming provides in-process pub/sub of run lifecycle events
// for UIs and log tails following executions in real time.
package streaming

import "context"

// Event types published by the executor.
const (
	EventRunStarted    = "run_started"
	EventRunCompleted  = "run_completed"
	EventRunFailed     = "run_failed"
	EventRunStopped    = "run_stopped"
	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
)

// StreamEvent is a real-time event emitted during a workflow run.
type StreamEvent struct {
	RunID     string `json:"run_id"`
	Workflow  string `json:"workflow"`
	StepID    string `json:"step_id,omitempty"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
// Zero fields match everything.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	Workflow   string   `json:"workflow,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for run events. Publishing is best-effort:
// a slow subscriber loses events rather than stalling the executor.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}

// Package orchestrator coordinates plan execution: it schedules ready tasks
// onto worker slots, validates completed work through checkpoints, and routes
// failures through recovery.
package orchestrator

import (
	"time"
)

// EventType represents the type of coordinator event.
type EventType string

const (
	// EventTaskQueued indicates a task is ready and queued for execution.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task's worker finished successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskValidated indicates a task passed its completion checkpoint.
	EventTaskValidated EventType = "task_validated"
	// EventTaskRetry indicates a fixable failure returned a task to ready.
	EventTaskRetry EventType = "task_retry"
	// EventTaskBlocked indicates a task is blocked and cannot proceed.
	EventTaskBlocked EventType = "task_blocked"
	// EventPlanCompleted indicates the entire plan has settled.
	EventPlanCompleted EventType = "plan_completed"
)

// Event represents a progress event emitted by the coordinator.
// Callers consume these to render progress without polling state.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// PlanID is the ID of the plan being executed.
	PlanID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// Worker is the worker bound to the related task, if applicable.
	Worker string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Attempt is the attempt number for retry events.
	Attempt int
	// Blocked lists the tasks blocked by a fundamental failure.
	Blocked []string
	// TokensUsed is the running total of tokens consumed by workers.
	TokensUsed int64
	// Duration is the elapsed time since the plan started.
	Duration time.Duration
}

package models

import "time"

// TaskStatus represents the current state of a task in its lifecycle.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies are validated and the task is eligible to run.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates the task's worker is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the worker finished but the checkpoint has not passed yet.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusValidated indicates the task passed all checkpoint stages.
	TaskStatusValidated TaskStatus = "validated"
	// TaskStatusFailed indicates the worker or checkpoint failed; recovery decides what happens next.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusBlocked indicates the task cannot proceed due to a fundamental failure upstream.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusValidated, TaskStatusFailed, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusValidated || s == TaskStatusBlocked
}

// Task represents a unit of work assigned to a single worker.
type Task struct {
	// ID is the unique identifier for this task within a plan.
	ID string `json:"id"`
	// PlanID is the ID of the plan this task belongs to.
	PlanID string `json:"plan_id,omitempty"`
	// Seq is the task's position in the plan descriptor (creation order).
	Seq int `json:"seq"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed instructions for the worker.
	Description string `json:"description,omitempty"`
	// Worker is the opaque reference to the worker that executes this task.
	Worker string `json:"worker"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// DependsOn lists task IDs that must be validated before this task becomes ready.
	DependsOn []string `json:"depends_on,omitempty"`
	// Context holds clarifications accumulated across retries, appended to
	// the worker's instructions on each attempt.
	Context []string `json:"context,omitempty"`
	// Artifacts lists outputs the worker reported producing.
	Artifacts []string `json:"artifacts,omitempty"`
	// KBUpdates lists knowledge base entries the worker declared writing.
	KBUpdates []string `json:"kb_updates,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the worker began executing, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the worker finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// ValidatedAt is when the checkpoint passed, if it has.
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	// Error contains the most recent failure message, if any.
	Error string `json:"error,omitempty"`
	// BlockedReason explains why the task is blocked, if it is.
	BlockedReason string `json:"blocked_reason,omitempty"`
	// RetryCount is the number of recovery retries consumed so far.
	RetryCount int `json:"retry_count,omitempty"`
}

// Instructions renders the full instruction text handed to the worker,
// including any clarifications gathered during recovery.
func (t *Task) Instructions() string {
	text := t.Title
	if t.Description != "" {
		text += "\n\n" + t.Description
	}
	for _, c := range t.Context {
		text += "\n\nCLARIFICATION: " + c
	}
	return text
}

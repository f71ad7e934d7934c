package models

import "time"

// WorkerResult is what a worker reports back after executing a task.
type WorkerResult struct {
	// TaskID is the task the worker executed.
	TaskID string `json:"task_id"`
	// Worker is the worker reference that produced this result.
	Worker string `json:"worker"`
	// Output is the worker's textual output.
	Output string `json:"output,omitempty"`
	// Artifacts lists outputs the worker produced (file paths, document ids).
	Artifacts []string `json:"artifacts,omitempty"`
	// KBUpdates lists knowledge base keys the worker declared writing.
	// The checkpoint's sync stage verifies each one exists in the store.
	KBUpdates []string `json:"kb_updates,omitempty"`
	// InputTokens and OutputTokens track API usage for this invocation.
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
	// Duration is how long the invocation took.
	Duration time.Duration `json:"duration,omitempty"`
}

// FailureOption is a course of action offered to the caller when a
// fundamental failure blocks part of the plan.
type FailureOption string

const (
	// OptionAmendPlan suggests restructuring the plan around the failure.
	OptionAmendPlan FailureOption = "amend_plan"
	// OptionProvideInfo suggests supplying missing information and resubmitting.
	OptionProvideInfo FailureOption = "provide_info"
	// OptionSkipTask suggests abandoning the failed subtree and keeping the rest.
	OptionSkipTask FailureOption = "skip_task"
	// OptionAbandon suggests abandoning the plan entirely.
	OptionAbandon FailureOption = "abandon"
)

// DefaultFailureOptions is the option set attached to every failure report.
func DefaultFailureOptions() []FailureOption {
	return []FailureOption{OptionAmendPlan, OptionProvideInfo, OptionSkipTask, OptionAbandon}
}

// FailureReport describes a fundamental failure and its blast radius.
// Independent branches of the plan continue executing; the report tells the
// caller what stopped and what their options are.
type FailureReport struct {
	// TaskID is the task that failed fundamentally.
	TaskID string `json:"task_id"`
	// Worker is the worker that was executing the task.
	Worker string `json:"worker"`
	// Kind is the failure classification (always fundamental for reports).
	Kind FailureKind `json:"kind"`
	// Reason is the failure description.
	Reason string `json:"reason"`
	// Attempts is how many times the task was tried, including retries.
	Attempts int `json:"attempts"`
	// BlockedTasks is the sorted set of transitive dependents blocked by
	// this failure, including the failed task itself.
	BlockedTasks []string `json:"blocked_tasks"`
	// Options enumerates the caller's choices.
	Options []FailureOption `json:"options"`
	// CreatedAt is when the report was generated.
	CreatedAt time.Time `json:"created_at"`
}

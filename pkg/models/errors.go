package models

import (
	"fmt"
	"strings"
)

// GraphErrorKind classifies plan parsing and graph construction failures.
type GraphErrorKind string

const (
	// GraphCycleDetected indicates the dependency graph contains a cycle.
	GraphCycleDetected GraphErrorKind = "cycle_detected"
	// GraphUnknownDependency indicates a task references a dependency that does not exist.
	GraphUnknownDependency GraphErrorKind = "unknown_dependency"
	// GraphDuplicateID indicates two tasks share the same identifier.
	GraphDuplicateID GraphErrorKind = "duplicate_id"
	// GraphEmptyPlan indicates the plan contains no tasks.
	GraphEmptyPlan GraphErrorKind = "empty_plan"
)

// GraphError is a fatal plan error. Plans that fail graph construction are
// rejected before any task runs.
type GraphError struct {
	// Kind classifies the failure.
	Kind GraphErrorKind
	// TaskID is the task the error was detected on, if applicable.
	TaskID string
	// Dependency is the offending dependency reference, if applicable.
	Dependency string
	// Cycle holds the ordered member tasks of a detected cycle,
	// ending where it started (a -> b -> a).
	Cycle []string
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case GraphCycleDetected:
		return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
	case GraphUnknownDependency:
		return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.Dependency)
	case GraphDuplicateID:
		return fmt.Sprintf("duplicate task id %s", e.TaskID)
	case GraphEmptyPlan:
		return "plan contains no tasks"
	default:
		return fmt.Sprintf("invalid plan: %s", e.Kind)
	}
}

// FailureKind classifies a task failure for recovery purposes.
type FailureKind string

const (
	// FailureFixable indicates the failure is recoverable with additional
	// context or a bounded retry.
	FailureFixable FailureKind = "fixable"
	// FailureFundamental indicates the failure cannot be recovered by
	// retrying; the task and its dependents must be blocked.
	FailureFundamental FailureKind = "fundamental"
	// FailureUnknown indicates no explicit classification was provided.
	FailureUnknown FailureKind = ""
)

// WorkerError describes a worker execution failure. Workers may attach an
// explicit classification signal; when absent, the recovery classifier falls
// back to heuristics.
type WorkerError struct {
	// TaskID is the task whose worker failed.
	TaskID string
	// Worker is the worker reference.
	Worker string
	// Reason is the failure description.
	Reason string
	// Signal is the worker's own classification of the failure, if provided.
	Signal FailureKind
	// Err is the underlying error, if any.
	Err error
}

func (e *WorkerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("worker %s failed on task %s: %s", e.Worker, e.TaskID, e.Reason)
	}
	return fmt.Sprintf("worker %s failed on task %s: %v", e.Worker, e.TaskID, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// CheckpointError describes a checkpoint validation failure after a worker
// reported success.
type CheckpointError struct {
	// TaskID is the task that failed validation.
	TaskID string
	// Stage is the checkpoint stage that rejected the task.
	Stage string
	// Issues lists the concerns raised by the failing stage.
	Issues []string
}

func (e *CheckpointError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("checkpoint %s rejected task %s", e.Stage, e.TaskID)
	}
	return fmt.Sprintf("checkpoint %s rejected task %s: %s", e.Stage, e.TaskID, strings.Join(e.Issues, "; "))
}

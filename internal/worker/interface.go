// Package worker provides worker invocation for task execution.
// Workers are opaque executors addressed by name; the orchestrator hands a
// task to its bound worker and receives a structured result or a failure.
package worker

import (
	"context"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// Invoker executes tasks on behalf of a worker. Implementations must honor
// context cancellation and deadlines.
type Invoker interface {
	// Invoke runs the task to completion and returns the worker's result.
	// Failures are returned as *models.WorkerError where possible, so the
	// recovery classifier can read the worker's failure signal.
	Invoke(ctx context.Context, task *models.Task) (*models.WorkerResult, error)

	// Clarify asks the worker a bounded clarification question about work it
	// already performed. Used by recovery to gather context from a completed
	// dependency before retrying a failed task.
	Clarify(ctx context.Context, task *models.Task, question string) (string, error)
}

// Reviewer performs peer review of another worker's result.
type Reviewer interface {
	// Review returns whether the result is approved, plus any concerns raised.
	Review(ctx context.Context, task *models.Task, result *models.WorkerResult) (approved bool, concerns []string, err error)
}

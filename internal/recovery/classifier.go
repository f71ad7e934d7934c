// Package recovery handles task failures: it classifies each failure as
// fixable or fundamental, drives bounded retries with clarification for the
// former, and blocks the failed subtree with a failure report for the
// latter.
package recovery

import (
	"errors"
	"strings"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// fundamentalKeywords indicate the failure cannot be retried away.
var fundamentalKeywords = []string{
	"impossible",
	"conflict",
	"incompatible",
	"architecture",
	"cannot",
	"violation",
}

// fixableKeywords indicate the failure stems from missing context.
var fixableKeywords = []string{
	"unclear",
	"missing",
	"not found",
	"undefined",
	"need more",
	"clarification",
	"incomplete",
}

// DefaultMaxRetries bounds how many times a fixable failure is retried
// before it is forced fundamental.
const DefaultMaxRetries = 3

// Classifier decides whether a failure is fixable or fundamental.
//
// Precedence: retry exhaustion always wins, then an explicit signal carried
// on the error, then the keyword heuristic, then a default of fixable.
type Classifier struct {
	// MaxRetries is the retry budget per task.
	MaxRetries int
}

// NewClassifier creates a classifier with the given retry budget.
// A non-positive budget falls back to DefaultMaxRetries.
func NewClassifier(maxRetries int) *Classifier {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Classifier{MaxRetries: maxRetries}
}

// Classify returns the failure kind for a task failure.
func (c *Classifier) Classify(task *models.Task, cause error) models.FailureKind {
	// Exhausted retries force fundamental regardless of the signal.
	if task.RetryCount >= c.MaxRetries {
		return models.FailureFundamental
	}

	var werr *models.WorkerError
	if errors.As(cause, &werr) && werr.Signal != models.FailureUnknown {
		return werr.Signal
	}

	msg := strings.ToLower(errorText(cause))
	for _, kw := range fundamentalKeywords {
		if strings.Contains(msg, kw) {
			return models.FailureFundamental
		}
	}
	for _, kw := range fixableKeywords {
		if strings.Contains(msg, kw) {
			return models.FailureFixable
		}
	}

	// Unknown failures get the benefit of the doubt while retries remain.
	return models.FailureFixable
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Reason extracts a human-readable failure reason from the cause.
func Reason(cause error) string {
	var werr *models.WorkerError
	if errors.As(cause, &werr) && werr.Reason != "" {
		return werr.Reason
	}
	var cerr *models.CheckpointError
	if errors.As(cause, &cerr) {
		return cerr.Error()
	}
	return errorText(cause)
}

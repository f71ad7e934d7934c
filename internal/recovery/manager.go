package recovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// Outcome describes what recovery decided for a failed task.
type Outcome struct {
	// Kind is the failure classification.
	Kind models.FailureKind
	// Retry is true when the task was returned to the ready state.
	Retry bool
	// Clarification is the answer gathered from a completed dependency
	// before the retry, if any.
	Clarification string
	// ClarifiedBy is the task that supplied the clarification.
	ClarifiedBy string
	// Report is the failure report for fundamental failures.
	Report *models.FailureReport
	// Blocked lists the tasks blocked by a fundamental failure, sorted,
	// including the failed task itself.
	Blocked []string
}

// Manager executes recovery decisions against the task graph.
type Manager struct {
	graph      *graph.TaskGraph
	registry   *worker.Registry
	kb         kb.Store
	classifier *Classifier
	now        func() time.Time
	debugLog   func(format string, args ...interface{})
}

// NewManager creates a recovery manager. The registry and KB are optional:
// without a registry retries proceed without clarification, and without a
// KB clarifications are not recorded.
func NewManager(g *graph.TaskGraph, registry *worker.Registry, store kb.Store, classifier *Classifier) *Manager {
	if classifier == nil {
		classifier = NewClassifier(DefaultMaxRetries)
	}
	return &Manager{
		graph:      g,
		registry:   registry,
		kb:         store,
		classifier: classifier,
		now:        time.Now,
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (m *Manager) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		m.debugLog = fn
	}
}

// MaxRetries returns the retry budget per task.
func (m *Manager) MaxRetries() int {
	return m.classifier.MaxRetries
}

// Recover handles a failed task. Fixable failures loop back to the task's
// most recently completed dependency for clarification, consume a retry,
// and return the task to ready. Fundamental failures block the task and its
// transitive dependents and produce a failure report.
func (m *Manager) Recover(ctx context.Context, task *models.Task, cause error) (*Outcome, error) {
	kind := m.classifier.Classify(task, cause)
	reason := Reason(cause)
	task.Error = reason

	m.debugLog("[recovery] task %s failed (%s): %s", task.ID, kind, reason)

	if kind == models.FailureFixable {
		return m.retry(ctx, task, reason)
	}
	return m.block(task, reason)
}

// retry prepares a fixable task for another attempt.
func (m *Manager) retry(ctx context.Context, task *models.Task, reason string) (*Outcome, error) {
	outcome := &Outcome{Kind: models.FailureFixable, Retry: true}

	// Ask the most recently completed dependency to clarify. A dependency
	// that cannot answer does not stop the retry.
	if dep := m.graph.MostRecentlyCompletedDep(task.ID); dep != nil && m.registry != nil {
		answer, err := m.clarify(ctx, dep, task, reason)
		if err != nil {
			m.debugLog("[recovery] clarification from %s failed: %v", dep.ID, err)
		} else if answer != "" {
			task.Context = append(task.Context, answer)
			outcome.Clarification = answer
			outcome.ClarifiedBy = dep.ID
			m.recordClarification(task, dep, answer)
		}
	}

	task.RetryCount++
	task.Status = models.TaskStatusReady
	m.debugLog("[recovery] task %s returned to ready (retry %d)", task.ID, task.RetryCount)
	return outcome, nil
}

// clarify asks the dependency's worker a bounded question about the failure.
func (m *Manager) clarify(ctx context.Context, dep, failed *models.Task, reason string) (string, error) {
	inv, err := m.registry.Resolve(dep.Worker)
	if err != nil {
		return "", err
	}
	question := fmt.Sprintf("Task %q failed with: %s. What context from your work does it need?", failed.Title, reason)
	return inv.Clarify(ctx, dep, question)
}

// recordClarification persists the clarification so it survives a restart.
func (m *Manager) recordClarification(task, dep *models.Task, answer string) {
	if m.kb == nil {
		return
	}
	err := m.kb.Append(&kb.Record{
		Key:     fmt.Sprintf("clarifications/%s", task.ID),
		Kind:    kb.KindClarification,
		Worker:  dep.Worker,
		Summary: answer,
		TaskID:  task.ID,
	})
	if err != nil {
		m.debugLog("[recovery] failed to record clarification for %s: %v", task.ID, err)
	}
}

// block marks the task and its transitive dependents blocked and builds the
// failure report. Independent branches of the plan are untouched.
func (m *Manager) block(task *models.Task, reason string) (*Outcome, error) {
	task.Status = models.TaskStatusBlocked
	task.BlockedReason = reason

	blocked := []string{task.ID}
	for _, depID := range m.graph.TransitiveDependents(task.ID) {
		dep := m.graph.Task(depID)
		if dep == nil || dep.Status.Terminal() {
			continue
		}
		dep.Status = models.TaskStatusBlocked
		dep.BlockedReason = "dependency_failed:" + task.ID
		blocked = append(blocked, depID)
	}
	sort.Strings(blocked)

	report := &models.FailureReport{
		TaskID:       task.ID,
		Worker:       task.Worker,
		Kind:         models.FailureFundamental,
		Reason:       reason,
		Attempts:     task.RetryCount + 1,
		BlockedTasks: blocked,
		Options:      models.DefaultFailureOptions(),
		CreatedAt:    m.now(),
	}

	m.debugLog("[recovery] task %s blocked %d tasks: %v", task.ID, len(blocked), blocked)
	return &Outcome{Kind: models.FailureFundamental, Report: report, Blocked: blocked}, nil
}

package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

func TestClassifyExplicitSignalWins(t *testing.T) {
	c := NewClassifier(3)
	task := &models.Task{ID: "task-1"}

	err := &models.WorkerError{TaskID: "task-1", Signal: models.FailureFundamental, Reason: "just unclear really"}
	if got := c.Classify(task, err); got != models.FailureFundamental {
		t.Errorf("explicit fundamental signal should win, got %s", got)
	}

	err = &models.WorkerError{TaskID: "task-1", Signal: models.FailureFixable, Reason: "conflict in requirements"}
	if got := c.Classify(task, err); got != models.FailureFixable {
		t.Errorf("explicit fixable signal should win over keywords, got %s", got)
	}
}

func TestClassifyKeywordHeuristic(t *testing.T) {
	c := NewClassifier(3)
	task := &models.Task{ID: "task-1"}

	tests := []struct {
		msg  string
		want models.FailureKind
	}{
		{"requirement is impossible to satisfy", models.FailureFundamental},
		{"schema conflict with task-2", models.FailureFundamental},
		{"config file not found", models.FailureFixable},
		{"requirements are unclear about token expiry", models.FailureFixable},
		{"need more detail on the schema", models.FailureFixable},
		{"some opaque error", models.FailureFixable}, // default while retries remain
	}

	for _, tt := range tests {
		if got := c.Classify(task, errors.New(tt.msg)); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestClassifyRetryExhaustionForcesFundamental(t *testing.T) {
	c := NewClassifier(3)
	task := &models.Task{ID: "task-1", RetryCount: 3}

	// Even an explicit fixable signal cannot override an exhausted budget.
	err := &models.WorkerError{TaskID: "task-1", Signal: models.FailureFixable, Reason: "unclear"}
	if got := c.Classify(task, err); got != models.FailureFundamental {
		t.Errorf("exhausted retries should force fundamental, got %s", got)
	}
}

// clarifyingInvoker scripts clarification answers.
type clarifyingInvoker struct {
	answer   string
	asked    []string
	failWith error
}

func (c *clarifyingInvoker) Invoke(ctx context.Context, task *models.Task) (*models.WorkerResult, error) {
	return &models.WorkerResult{TaskID: task.ID}, nil
}

func (c *clarifyingInvoker) Clarify(ctx context.Context, task *models.Task, question string) (string, error) {
	c.asked = append(c.asked, question)
	if c.failWith != nil {
		return "", c.failWith
	}
	return c.answer, nil
}

func recoveryFixture(t *testing.T) (*graph.TaskGraph, []*models.Task) {
	t.Helper()
	early := time.Now().Add(-time.Hour)
	late := time.Now()
	tasks := []*models.Task{
		{ID: "task-1", Seq: 1, Worker: "backend-architect", Status: models.TaskStatusValidated, CompletedAt: &early},
		{ID: "task-2", Seq: 2, Worker: "database-specialist", Status: models.TaskStatusValidated, CompletedAt: &late},
		{ID: "task-3", Seq: 3, Worker: "fastapi-specialist", Status: models.TaskStatusFailed, DependsOn: []string{"task-1", "task-2"}},
		{ID: "task-4", Seq: 4, Worker: "test-engineer", Status: models.TaskStatusPending, DependsOn: []string{"task-3"}},
		{ID: "task-5", Seq: 5, Worker: "docs-writer", Status: models.TaskStatusPending},
	}
	g := graph.New()
	if err := g.Build(tasks); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g, tasks
}

func TestRecoverFixableLoopsBackToLatestDep(t *testing.T) {
	g, tasks := recoveryFixture(t)

	inv := &clarifyingInvoker{answer: "The schema uses snake_case column names."}
	reg := worker.NewRegistry()
	reg.SetFallback(inv)

	store := kb.NewMemory()
	m := NewManager(g, reg, store, NewClassifier(3))

	failed := tasks[2]
	cause := &models.WorkerError{TaskID: failed.ID, Worker: failed.Worker, Reason: "column names unclear"}
	outcome, err := m.Recover(context.Background(), failed, cause)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	if outcome.Kind != models.FailureFixable || !outcome.Retry {
		t.Fatalf("expected fixable retry, got %+v", outcome)
	}
	// task-2 completed later than task-1, so it supplies the clarification.
	if outcome.ClarifiedBy != "task-2" {
		t.Errorf("expected clarification from task-2, got %s", outcome.ClarifiedBy)
	}
	if len(inv.asked) != 1 {
		t.Fatalf("expected 1 clarification question, got %d", len(inv.asked))
	}

	if failed.Status != models.TaskStatusReady {
		t.Errorf("failed task should be ready for retry, got %s", failed.Status)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry count should be 1, got %d", failed.RetryCount)
	}
	if len(failed.Context) != 1 || failed.Context[0] != inv.answer {
		t.Errorf("clarification should be appended to task context: %v", failed.Context)
	}

	// The clarification is durable in the KB.
	records, _ := store.ListByTask("task-3")
	if len(records) != 1 || records[0].Kind != kb.KindClarification {
		t.Errorf("expected clarification record in kb, got %v", records)
	}
}

func TestRecoverFixableClarificationFailureStillRetries(t *testing.T) {
	g, tasks := recoveryFixture(t)

	inv := &clarifyingInvoker{failWith: errors.New("worker unavailable")}
	reg := worker.NewRegistry()
	reg.SetFallback(inv)

	m := NewManager(g, reg, nil, NewClassifier(3))

	failed := tasks[2]
	outcome, err := m.Recover(context.Background(), failed, errors.New("something is missing"))
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !outcome.Retry {
		t.Error("retry should proceed even when clarification fails")
	}
	if len(failed.Context) != 0 {
		t.Errorf("no clarification should be recorded: %v", failed.Context)
	}
	if failed.Status != models.TaskStatusReady {
		t.Errorf("task should be ready, got %s", failed.Status)
	}
}

func TestRecoverFundamentalBlocksExactClosure(t *testing.T) {
	g, tasks := recoveryFixture(t)

	m := NewManager(g, nil, nil, NewClassifier(3))

	failed := tasks[2]
	cause := &models.WorkerError{TaskID: failed.ID, Worker: failed.Worker, Signal: models.FailureFundamental, Reason: "requirement conflicts with validated schema"}
	outcome, err := m.Recover(context.Background(), failed, cause)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	if outcome.Kind != models.FailureFundamental || outcome.Retry {
		t.Fatalf("expected fundamental block, got %+v", outcome)
	}

	want := []string{"task-3", "task-4"}
	if len(outcome.Blocked) != len(want) {
		t.Fatalf("blocked closure = %v, want %v", outcome.Blocked, want)
	}
	for i := range want {
		if outcome.Blocked[i] != want[i] {
			t.Errorf("blocked closure = %v, want %v", outcome.Blocked, want)
		}
	}

	if failed.Status != models.TaskStatusBlocked {
		t.Errorf("failed task should be blocked, got %s", failed.Status)
	}
	if tasks[3].Status != models.TaskStatusBlocked {
		t.Errorf("dependent task-4 should be blocked, got %s", tasks[3].Status)
	}
	if tasks[3].BlockedReason != "dependency_failed:task-3" {
		t.Errorf("unexpected blocked reason %q", tasks[3].BlockedReason)
	}

	// Independent task untouched.
	if tasks[4].Status != models.TaskStatusPending {
		t.Errorf("independent task-5 must be untouched, got %s", tasks[4].Status)
	}
	// Validated upstream tasks untouched.
	if tasks[0].Status != models.TaskStatusValidated {
		t.Errorf("validated task-1 must be untouched, got %s", tasks[0].Status)
	}
}

func TestRecoverFundamentalReport(t *testing.T) {
	g, tasks := recoveryFixture(t)
	m := NewManager(g, nil, nil, NewClassifier(3))

	failed := tasks[2]
	failed.RetryCount = 3
	outcome, err := m.Recover(context.Background(), failed, errors.New("still failing"))
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	report := outcome.Report
	if report == nil {
		t.Fatal("expected failure report")
	}
	if report.TaskID != "task-3" || report.Kind != models.FailureFundamental {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Attempts != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", report.Attempts)
	}
	if len(report.Options) != 4 {
		t.Errorf("expected 4 caller options, got %v", report.Options)
	}
	if len(report.BlockedTasks) != 2 {
		t.Errorf("expected blocked tasks in report, got %v", report.BlockedTasks)
	}
}

package checkpoint

import (
	"context"
	"testing"

	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// fakeReviewer is a test double that records calls and returns a scripted
// verdict.
type fakeReviewer struct {
	approved bool
	concerns []string
	calls    int
}

func (f *fakeReviewer) Invoke(ctx context.Context, task *models.Task) (*models.WorkerResult, error) {
	return &models.WorkerResult{TaskID: task.ID}, nil
}

func (f *fakeReviewer) Clarify(ctx context.Context, task *models.Task, question string) (string, error) {
	return "", nil
}

func (f *fakeReviewer) Review(ctx context.Context, task *models.Task, result *models.WorkerResult) (bool, []string, error) {
	f.calls++
	return f.approved, f.concerns, nil
}

func registryWith(t *testing.T, reviewers map[string]*fakeReviewer) *worker.Registry {
	t.Helper()
	reg := worker.NewRegistry()
	for name, r := range reviewers {
		reg.Register(name, r)
	}
	return reg
}

func completedTask(worker string) (*models.Task, *models.WorkerResult) {
	task := &models.Task{
		ID:     "task-1",
		Worker: worker,
		Status: models.TaskStatusCompleted,
	}
	result := &models.WorkerResult{
		TaskID:    "task-1",
		Worker:    worker,
		Output:    "done",
		Artifacts: []string{"api/auth.py"},
	}
	return task, result
}

func TestValidatePassesAllStages(t *testing.T) {
	reviewer := &fakeReviewer{approved: true}
	reg := registryWith(t, map[string]*fakeReviewer{"code-reviewer": reviewer})
	v := NewValidator(kb.NewMemory(), reg, nil)

	task, result := completedTask("backend-architect")
	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected pass, failed at %s: %v", res.FailedStage(), res.Stages)
	}
	if len(res.Stages) != 4 {
		t.Errorf("expected 4 stages, got %d", len(res.Stages))
	}
	if reviewer.calls != 1 {
		t.Errorf("expected 1 review call, got %d", reviewer.calls)
	}
	if res.Err() != nil {
		t.Errorf("passing result should have nil Err, got %v", res.Err())
	}
}

func TestValidateAutomaticStageRejects(t *testing.T) {
	v := NewValidator(nil, nil, nil)

	task, _ := completedTask("backend-architect")
	res, err := v.Validate(context.Background(), task, &models.WorkerResult{TaskID: "task-1", Worker: "backend-architect"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure for empty result")
	}
	if res.FailedStage() != StageAutomatic {
		t.Errorf("expected automatic stage failure, got %s", res.FailedStage())
	}

	cerr, ok := res.Err().(*models.CheckpointError)
	if !ok {
		t.Fatalf("expected CheckpointError, got %T", res.Err())
	}
	if cerr.Stage != string(StageAutomatic) {
		t.Errorf("expected stage automatic, got %s", cerr.Stage)
	}
}

func TestValidateWorkerMismatchRejects(t *testing.T) {
	v := NewValidator(nil, nil, nil)

	task, result := completedTask("backend-architect")
	result.Worker = "someone-else"

	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("expected failure for worker mismatch")
	}
	if res.FailedStage() != StageAutomatic {
		t.Errorf("expected automatic failure, got %s", res.FailedStage())
	}
}

func TestValidatePeerReviewRejectionAggregatesConcerns(t *testing.T) {
	general := &fakeReviewer{approved: false, concerns: []string{"missing tests", "no error handling"}}
	domain := &fakeReviewer{approved: false, concerns: []string{"schema drift"}}
	reg := registryWith(t, map[string]*fakeReviewer{
		"code-reviewer":     general,
		"backend-architect": domain,
	})
	v := NewValidator(nil, reg, nil)

	task, result := completedTask("fastapi-specialist")
	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("expected peer review failure")
	}
	if res.FailedStage() != StagePeerReview {
		t.Fatalf("expected peer_review failure, got %s", res.FailedStage())
	}

	var stage StageResult
	for _, s := range res.Stages {
		if s.Stage == StagePeerReview {
			stage = s
		}
	}
	if len(stage.Issues) != 3 {
		t.Errorf("expected 3 aggregated concerns, got %v", stage.Issues)
	}
}

func TestValidateSyncRejectsMissingKBUpdate(t *testing.T) {
	store := kb.NewMemory()
	store.Append(&kb.Record{Key: "patterns/auth.md", Kind: kb.KindPattern, Worker: "w", Summary: "s"})

	v := NewValidator(store, nil, nil)

	task, result := completedTask("backend-architect")
	result.KBUpdates = []string{"patterns/auth.md", "decisions/missing"}

	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Passed {
		t.Fatal("expected sync failure")
	}
	if res.FailedStage() != StageSync {
		t.Errorf("expected kb_sync failure, got %s", res.FailedStage())
	}
}

func TestValidateSyncPassesWhenUpdatesExist(t *testing.T) {
	store := kb.NewMemory()
	store.Append(&kb.Record{Key: "patterns/auth.md", Kind: kb.KindPattern, Worker: "w", Summary: "s"})

	v := NewValidator(store, nil, nil)

	task, result := completedTask("backend-architect")
	result.KBUpdates = []string{"patterns/auth.md"}

	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Passed {
		t.Errorf("expected pass, failed at %s", res.FailedStage())
	}
}

func TestValidateIdempotentOnValidatedTask(t *testing.T) {
	reviewer := &fakeReviewer{approved: true}
	reg := registryWith(t, map[string]*fakeReviewer{"code-reviewer": reviewer})
	store := kb.NewMemory()
	v := NewValidator(store, reg, nil)

	task, result := completedTask("backend-architect")
	task.Status = models.TaskStatusValidated
	// Declared update is missing from the store; sync would fail if it ran.
	result.KBUpdates = []string{"decisions/not-there"}

	res, err := v.Validate(context.Background(), task, result)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Passed || !res.AlreadyValidated {
		t.Errorf("expected no-op pass for validated task, got %+v", res)
	}
	if reviewer.calls != 0 {
		t.Errorf("no reviews should run on re-validation, got %d calls", reviewer.calls)
	}
}

func TestReviewersForSelection(t *testing.T) {
	rules := DefaultReviewRules()

	tests := []struct {
		worker string
		want   []string
	}{
		{"backend-specialist", []string{"code-reviewer"}},
		{"frontend-builder", []string{"code-quality-frontend"}},
		{"ui-specialist", []string{"code-quality-frontend"}},
		{"fastapi-specialist", []string{"code-reviewer", "backend-architect"}},
		{"code-reviewer", nil},
		{"code-quality-frontend", nil},
	}

	for _, tt := range tests {
		got := rules.ReviewersFor(tt.worker)
		if len(got) != len(tt.want) {
			t.Errorf("ReviewersFor(%s) = %v, want %v", tt.worker, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ReviewersFor(%s) = %v, want %v", tt.worker, got, tt.want)
				break
			}
		}
	}
}

func TestLoadReviewRulesMissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadReviewRules(t.TempDir() + "/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rules.General != "code-reviewer" {
		t.Errorf("expected default general reviewer, got %s", rules.General)
	}
}

// Package checkpoint validates completed tasks before their dependents are
// released. Every task passes through four stages: automatic verification,
// peer review, knowledge base sync, and final approval. A failure at any
// stage stops the sequence and feeds the task into recovery.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// Stage identifies a checkpoint validation stage.
type Stage string

const (
	// StageAutomatic verifies the result's basic consistency and artifacts.
	StageAutomatic Stage = "automatic"
	// StagePeerReview runs reviewer workers over the result.
	StagePeerReview Stage = "peer_review"
	// StageSync verifies declared knowledge base updates exist in the store.
	StageSync Stage = "kb_sync"
	// StageApproval is the final approval that releases dependents.
	StageApproval Stage = "approval"
)

// StageResult records the outcome of a single checkpoint stage.
type StageResult struct {
	Stage  Stage    `json:"stage"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Result is the outcome of a full checkpoint run.
type Result struct {
	// TaskID is the task that was validated.
	TaskID string `json:"task_id"`
	// Passed is true when all stages passed.
	Passed bool `json:"passed"`
	// AlreadyValidated is true when the task had passed a checkpoint before
	// and the run was a no-op.
	AlreadyValidated bool `json:"already_validated,omitempty"`
	// Stages holds per-stage diagnostics in execution order.
	Stages []StageResult `json:"stages,omitempty"`
	// CompletedAt is when the checkpoint finished.
	CompletedAt time.Time `json:"completed_at"`
}

// FailedStage returns the first failing stage, or "" if all passed.
func (r *Result) FailedStage() Stage {
	for _, s := range r.Stages {
		if !s.Passed {
			return s.Stage
		}
	}
	return ""
}

// Err converts a failed result into a *models.CheckpointError, or nil.
func (r *Result) Err() error {
	for _, s := range r.Stages {
		if !s.Passed {
			return &models.CheckpointError{TaskID: r.TaskID, Stage: string(s.Stage), Issues: s.Issues}
		}
	}
	return nil
}

// Validator runs the four-stage checkpoint. The knowledge base and worker
// registry are optional: a nil KB skips the sync stage, and a nil registry
// skips peer review.
type Validator struct {
	kb       kb.Store
	registry *worker.Registry
	rules    *ReviewRules
	debugLog func(format string, args ...interface{})
}

// NewValidator creates a checkpoint validator.
func NewValidator(store kb.Store, registry *worker.Registry, rules *ReviewRules) *Validator {
	if rules == nil {
		rules = DefaultReviewRules()
	}
	return &Validator{
		kb:       store,
		registry: registry,
		rules:    rules,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (v *Validator) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		v.debugLog = fn
	}
}

// Validate runs the checkpoint for a completed task. Re-validating an
// already-validated task is a no-op: no reviews run, no sync happens, and
// the previous verdict stands.
//
// The returned error is reserved for infrastructure failures (reviewer
// unreachable, KB query error); stage rejections are reported through the
// Result and its Err method.
func (v *Validator) Validate(ctx context.Context, task *models.Task, result *models.WorkerResult) (*Result, error) {
	if task.Status == models.TaskStatusValidated {
		v.debugLog("[checkpoint] task %s already validated, skipping", task.ID)
		return &Result{TaskID: task.ID, Passed: true, AlreadyValidated: true, CompletedAt: time.Now()}, nil
	}

	res := &Result{TaskID: task.ID}

	stages := []func(context.Context, *models.Task, *models.WorkerResult) (StageResult, error){
		v.automatic,
		v.peerReview,
		v.sync,
		v.approval,
	}

	for _, stage := range stages {
		sr, err := stage(ctx, task, result)
		if err != nil {
			return nil, err
		}
		res.Stages = append(res.Stages, sr)
		v.debugLog("[checkpoint] task %s stage %s passed=%v issues=%v", task.ID, sr.Stage, sr.Passed, sr.Issues)
		if !sr.Passed {
			res.CompletedAt = time.Now()
			return res, nil
		}
	}

	res.Passed = true
	res.CompletedAt = time.Now()
	return res, nil
}

// automatic verifies the result's consistency with the task.
func (v *Validator) automatic(_ context.Context, task *models.Task, result *models.WorkerResult) (StageResult, error) {
	sr := StageResult{Stage: StageAutomatic}

	if result == nil {
		sr.Issues = append(sr.Issues, "no result reported")
		return sr, nil
	}
	if result.TaskID != task.ID {
		sr.Issues = append(sr.Issues, fmt.Sprintf("result is for task %s, not %s", result.TaskID, task.ID))
	}
	if result.Worker != "" && result.Worker != task.Worker {
		sr.Issues = append(sr.Issues, fmt.Sprintf("result produced by %s, task is bound to %s", result.Worker, task.Worker))
	}
	if result.Output == "" && len(result.Artifacts) == 0 {
		sr.Issues = append(sr.Issues, "result has no output and no artifacts")
	}

	sr.Passed = len(sr.Issues) == 0
	return sr, nil
}

// peerReview runs each selected reviewer over the result. Any rejection
// fails the stage with the aggregated concern list.
func (v *Validator) peerReview(ctx context.Context, task *models.Task, result *models.WorkerResult) (StageResult, error) {
	sr := StageResult{Stage: StagePeerReview, Passed: true}

	if v.registry == nil {
		return sr, nil
	}

	for _, name := range v.rules.ReviewersFor(task.Worker) {
		reviewer, err := v.registry.ResolveReviewer(name)
		if err != nil {
			return StageResult{}, fmt.Errorf("checkpoint for task %s: %w", task.ID, err)
		}

		approved, concerns, err := reviewer.Review(ctx, task, result)
		if err != nil {
			return StageResult{}, fmt.Errorf("checkpoint for task %s: %w", task.ID, err)
		}
		if !approved {
			sr.Passed = false
			if len(concerns) == 0 {
				concerns = []string{fmt.Sprintf("rejected by %s", name)}
			}
			for _, c := range concerns {
				sr.Issues = append(sr.Issues, fmt.Sprintf("%s: %s", name, c))
			}
		}
	}
	return sr, nil
}

// sync verifies that every knowledge base update the worker declared is
// actually present in the store.
func (v *Validator) sync(_ context.Context, task *models.Task, result *models.WorkerResult) (StageResult, error) {
	sr := StageResult{Stage: StageSync, Passed: true}

	if v.kb == nil || result == nil {
		return sr, nil
	}

	for _, key := range result.KBUpdates {
		exists, err := v.kb.Exists(key)
		if err != nil {
			return StageResult{}, fmt.Errorf("checkpoint kb sync for task %s: %w", task.ID, err)
		}
		if !exists {
			sr.Passed = false
			sr.Issues = append(sr.Issues, fmt.Sprintf("declared kb update %q not found in store", key))
		}
	}
	return sr, nil
}

// approval is the final stage. Reaching it means every prior stage passed;
// it records the verdict that releases the task's dependents.
func (v *Validator) approval(_ context.Context, task *models.Task, _ *models.WorkerResult) (StageResult, error) {
	v.debugLog("[checkpoint] task %s approved", task.ID)
	return StageResult{Stage: StageApproval, Passed: true}, nil
}

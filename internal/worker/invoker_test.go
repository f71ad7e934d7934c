package worker

import (
	"context"
	"testing"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

func TestParseFailureSignal(t *testing.T) {
	tests := []struct {
		name   string
		output string
		kind   models.FailureKind
		failed bool
	}{
		{"fixable", "some output\nFAILURE: fixable: missing schema details", models.FailureFixable, true},
		{"fundamental", "FAILURE: fundamental: requirement conflicts with task-2", models.FailureFundamental, true},
		{"unknown kind", "FAILURE: weird: something", models.FailureUnknown, true},
		{"no signal", "all good\n{\"artifacts\": []}", models.FailureUnknown, false},
		{"mid-sentence mention", "the word FAILURE: appears here but not at line start is still a signal line? no -\n ok", models.FailureUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, reason, failed := parseFailureSignal(tt.output)
			if failed != tt.failed {
				t.Fatalf("failed = %v, want %v (reason=%q)", failed, tt.failed, reason)
			}
			if failed && kind != tt.kind {
				t.Errorf("kind = %q, want %q", kind, tt.kind)
			}
		})
	}
}

func TestParseResultTrailer(t *testing.T) {
	output := `Work complete. I created the login endpoint.

{"artifacts": ["api/auth.py", "api/tokens.py"], "kb_updates": ["patterns/auth.md"]}`

	artifacts, kbUpdates := parseResultTrailer(output)
	if len(artifacts) != 2 || artifacts[0] != "api/auth.py" {
		t.Errorf("artifacts not parsed: %v", artifacts)
	}
	if len(kbUpdates) != 1 || kbUpdates[0] != "patterns/auth.md" {
		t.Errorf("kb_updates not parsed: %v", kbUpdates)
	}
}

func TestParseResultTrailerMissing(t *testing.T) {
	artifacts, kbUpdates := parseResultTrailer("no trailer here")
	if artifacts != nil || kbUpdates != nil {
		t.Errorf("expected nil for missing trailer, got %v %v", artifacts, kbUpdates)
	}
}

func TestParseReview(t *testing.T) {
	approved, concerns := ParseReview("APPROVED\nLooks good overall.")
	if !approved {
		t.Error("expected approval")
	}
	if len(concerns) != 0 {
		t.Errorf("expected no concerns, got %v", concerns)
	}

	approved, concerns = ParseReview(`NOT APPROVED
CONCERN: missing error handling on the token path
CONCERN: no tests for expiry`)
	if approved {
		t.Error("expected rejection")
	}
	if len(concerns) != 2 {
		t.Errorf("expected 2 concerns, got %v", concerns)
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	inv := &stubInvoker{}
	reg.Register("backend-architect", inv)

	got, err := reg.Resolve("backend-architect")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != inv {
		t.Error("resolved wrong invoker")
	}

	if _, err := reg.Resolve("missing"); err == nil {
		t.Error("expected error for unregistered worker with no fallback")
	}

	fallback := &stubInvoker{}
	reg.SetFallback(fallback)
	got, err = reg.Resolve("missing")
	if err != nil {
		t.Fatalf("resolve with fallback: %v", err)
	}
	if got != fallback {
		t.Error("expected fallback invoker")
	}
}

func TestRegistryResolveReviewer(t *testing.T) {
	reg := NewRegistry()
	reg.Register("plain", &stubInvoker{})
	reg.Register("reviewer", &stubReviewer{})

	if _, err := reg.ResolveReviewer("plain"); err == nil {
		t.Error("expected error for invoker without review support")
	}
	if _, err := reg.ResolveReviewer("reviewer"); err != nil {
		t.Errorf("expected reviewer to resolve: %v", err)
	}
}

type stubInvoker struct{}

func (s *stubInvoker) Invoke(ctx context.Context, task *models.Task) (*models.WorkerResult, error) {
	return &models.WorkerResult{TaskID: task.ID}, nil
}

func (s *stubInvoker) Clarify(ctx context.Context, task *models.Task, question string) (string, error) {
	return "", nil
}

type stubReviewer struct {
	stubInvoker
}

func (s *stubReviewer) Review(ctx context.Context, task *models.Task, result *models.WorkerResult) (bool, []string, error) {
	return true, nil, nil
}

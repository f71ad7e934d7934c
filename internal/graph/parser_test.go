package graph

import (
	"errors"
	"testing"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

func TestParseAssignsSyntheticIDs(t *testing.T) {
	p := NewParser()
	plan, _, err := p.Parse(models.PlanDescriptor{
		Tasks: []models.Descriptor{
			{Title: "Design schema", Worker: "backend-architect"},
			{Title: "Build endpoint", Worker: "fastapi-specialist", DependsOn: []string{"task-1"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Tasks[0].ID != "task-1" {
		t.Errorf("expected task-1, got %s", plan.Tasks[0].ID)
	}
	if plan.Tasks[1].ID != "task-2" {
		t.Errorf("expected task-2, got %s", plan.Tasks[1].ID)
	}
	if plan.Tasks[0].Seq != 1 || plan.Tasks[1].Seq != 2 {
		t.Errorf("expected seq 1,2 got %d,%d", plan.Tasks[0].Seq, plan.Tasks[1].Seq)
	}
}

func TestParseKeepsExplicitIDs(t *testing.T) {
	p := NewParser()
	plan, _, err := p.Parse(models.PlanDescriptor{
		Tasks: []models.Descriptor{
			{ID: "schema", Title: "Design schema", Worker: "backend-architect"},
			{Title: "Build endpoint", Worker: "fastapi-specialist", DependsOn: []string{"schema"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Tasks[0].ID != "schema" {
		t.Errorf("explicit id should be kept, got %s", plan.Tasks[0].ID)
	}
}

func TestParseRejectsCycle(t *testing.T) {
	p := NewParser()
	_, _, err := p.Parse(models.PlanDescriptor{
		Tasks: []models.Descriptor{
			{ID: "a", Title: "A", Worker: "w", DependsOn: []string{"b"}},
			{ID: "b", Title: "B", Worker: "w", DependsOn: []string{"a"}},
		},
	})

	var gerr *models.GraphError
	if !errors.As(err, &gerr) || gerr.Kind != models.GraphCycleDetected {
		t.Fatalf("expected cycle_detected, got %v", err)
	}
}

func TestParseRejectsEmptyPlan(t *testing.T) {
	p := NewParser()
	_, _, err := p.Parse(models.PlanDescriptor{})

	var gerr *models.GraphError
	if !errors.As(err, &gerr) || gerr.Kind != models.GraphEmptyPlan {
		t.Fatalf("expected empty_plan, got %v", err)
	}
}

func TestParseTaskList(t *testing.T) {
	text := `
1. backend-architect: Design API schema
2. fastapi-specialist: Build auth endpoint (depends on: 1)
3. test-engineer: Write integration tests (depends on: 1, 2)

Some trailing commentary that is not a task line.
`
	p := NewParser()
	plan, g, err := p.ParseTaskList("build auth", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	if plan.Request != "build auth" {
		t.Errorf("expected request to be carried, got %q", plan.Request)
	}

	second := plan.Tasks[1]
	if second.Worker != "fastapi-specialist" {
		t.Errorf("expected worker fastapi-specialist, got %s", second.Worker)
	}
	if second.Title != "Build auth endpoint" {
		t.Errorf("unexpected title %q", second.Title)
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != "task-1" {
		t.Errorf("positional dependency not resolved: %v", second.DependsOn)
	}

	third := plan.Tasks[2]
	if len(third.DependsOn) != 2 {
		t.Errorf("expected 2 deps, got %v", third.DependsOn)
	}

	if g.Size() != 3 {
		t.Errorf("expected graph of 3, got %d", g.Size())
	}
}

func TestParseTaskListUnknownReference(t *testing.T) {
	p := NewParser()
	_, _, err := p.ParseTaskList("", "1. worker-a: First (depends on: 7)")

	var gerr *models.GraphError
	if !errors.As(err, &gerr) || gerr.Kind != models.GraphUnknownDependency {
		t.Fatalf("expected unknown_dependency, got %v", err)
	}
}

func TestParseTaskListNoTaskLines(t *testing.T) {
	p := NewParser()
	_, _, err := p.ParseTaskList("", "nothing to see here")

	var gerr *models.GraphError
	if !errors.As(err, &gerr) || gerr.Kind != models.GraphEmptyPlan {
		t.Fatalf("expected empty_plan, got %v", err)
	}
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
request: build auth flow
tasks:
  - title: Design schema
    worker: backend-architect
  - title: Build endpoint
    worker: fastapi-specialist
    depends_on: [task-1]
`)
	p := NewParser()
	plan, _, err := p.ParseYAML(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(plan.Tasks))
	}
	if plan.Tasks[1].DependsOn[0] != "task-1" {
		t.Errorf("yaml depends_on not parsed: %v", plan.Tasks[1].DependsOn)
	}
}

package orchestrator

import (
	"testing"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

func buildGraph(t *testing.T, tasks []*models.Task) *graph.TaskGraph {
	t.Helper()
	g := graph.New()
	if err := g.Build(tasks); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func TestScheduleRespectsSlots(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Seq: 1, Status: models.TaskStatusPending},
		{ID: "task-2", Seq: 2, Status: models.TaskStatusPending},
		{ID: "task-3", Seq: 3, Status: models.TaskStatusPending},
		{ID: "task-4", Seq: 4, Status: models.TaskStatusPending},
	}
	s := NewScheduler(buildGraph(t, tasks), 2)

	batch := s.Schedule()
	if len(batch) != 2 {
		t.Fatalf("expected 2 tasks with 2 slots, got %d", len(batch))
	}
	// Creation order decides who goes first.
	if batch[0].ID != "task-1" || batch[1].ID != "task-2" {
		t.Errorf("expected tasks 1 and 2, got %s and %s", batch[0].ID, batch[1].ID)
	}

	s.OnTaskStart(batch[0])
	s.OnTaskStart(batch[1])

	if next := s.Schedule(); next != nil {
		t.Errorf("expected no tasks with all slots busy, got %d", len(next))
	}

	s.OnTaskComplete("task-1")
	next := s.Schedule()
	if len(next) != 1 || next[0].ID != "task-3" {
		t.Errorf("expected task-3 after a slot freed, got %v", next)
	}
}

func TestScheduleSkipsDispatchedTasks(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Seq: 1, Status: models.TaskStatusPending},
		{ID: "task-2", Seq: 2, Status: models.TaskStatusPending},
	}
	s := NewScheduler(buildGraph(t, tasks), 3)

	batch := s.Schedule()
	if len(batch) != 2 {
		t.Fatalf("expected both tasks, got %d", len(batch))
	}
	s.OnTaskStart(batch[0])

	// task-1 is in flight but still pending in the graph; it must not be
	// offered again.
	next := s.Schedule()
	if len(next) != 1 || next[0].ID != "task-2" {
		t.Errorf("expected only task-2, got %v", next)
	}
}

func TestScheduleWaitsForValidation(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Seq: 1, Status: models.TaskStatusCompleted},
		{ID: "task-2", Seq: 2, Status: models.TaskStatusPending, DependsOn: []string{"task-1"}},
	}
	g := buildGraph(t, tasks)
	s := NewScheduler(g, 3)

	// Completed is not enough, the dependency must be validated.
	if batch := s.Schedule(); len(batch) != 0 {
		t.Fatalf("expected no tasks while dependency awaits validation, got %v", batch)
	}

	tasks[0].Status = models.TaskStatusValidated
	batch := s.Schedule()
	if len(batch) != 1 || batch[0].ID != "task-2" {
		t.Errorf("expected task-2 after validation, got %v", batch)
	}
}

func TestOnTaskCompleteUnknownID(t *testing.T) {
	s := NewScheduler(buildGraph(t, []*models.Task{{ID: "task-1", Seq: 1, Status: models.TaskStatusPending}}), 1)
	// Must not panic or corrupt the running count.
	s.OnTaskComplete("task-99")
	if s.RunningCount() != 0 {
		t.Errorf("running count = %d, want 0", s.RunningCount())
	}
}

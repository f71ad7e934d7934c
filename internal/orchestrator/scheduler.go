package orchestrator

import (
	"sort"
	"sync"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// Scheduler assigns ready tasks to available worker slots.
// It respects the concurrency limit and dispatches in creation order so a
// given plan always schedules deterministically.
type Scheduler struct {
	// graph is the dependency graph of tasks.
	graph *graph.TaskGraph
	// running maps task IDs to their in-flight tasks.
	running map[string]*models.Task
	// maxWorkers is the maximum number of concurrent workers allowed.
	maxWorkers int
	// debugLog writes scheduling decisions to the debug log.
	debugLog func(format string, args ...interface{})
	// mu protects all mutable fields.
	mu sync.RWMutex
}

// NewScheduler creates a Scheduler with the given graph and concurrency limit.
func NewScheduler(g *graph.TaskGraph, maxWorkers int) *Scheduler {
	return &Scheduler{
		graph:      g,
		running:    make(map[string]*models.Task),
		maxWorkers: maxWorkers,
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (s *Scheduler) SetDebugLog(fn func(format string, args ...interface{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.debugLog = fn
	}
}

// Schedule returns the tasks to dispatch right now. It considers:
// - Tasks whose dependencies are all validated (from the graph)
// - Available worker slots (maxWorkers - running count)
// Results are ordered by task creation order and capped at the free slots.
func (s *Scheduler) Schedule() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	availableSlots := s.maxWorkers - len(s.running)
	if availableSlots <= 0 {
		s.debugLog("[scheduler] no available slots: maxWorkers=%d, running=%d", s.maxWorkers, len(s.running))
		return nil
	}

	ready := s.graph.Ready()
	s.debugLog("[scheduler] graph.Ready() returned %d tasks", len(ready))
	if len(ready) == 0 {
		return nil
	}

	// Filter out tasks already dispatched. Ready tasks keep their pending or
	// ready status until a slot picks them up, so the running map is the
	// source of truth for what is in flight.
	var schedulable []*models.Task
	for _, id := range ready {
		if _, inFlight := s.running[id]; inFlight {
			continue
		}
		if task := s.graph.Task(id); task != nil {
			schedulable = append(schedulable, task)
		}
	}

	sort.SliceStable(schedulable, func(i, j int) bool {
		return schedulable[i].Seq < schedulable[j].Seq
	})

	if len(schedulable) > availableSlots {
		schedulable = schedulable[:availableSlots]
	}

	s.debugLog("[scheduler] scheduling %d tasks (slots: %d)", len(schedulable), availableSlots)
	return schedulable
}

// OnTaskStart records that a worker has started the task.
func (s *Scheduler) OnTaskStart(task *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[task.ID] = task
	s.debugLog("[scheduler] task %s dispatched to %s (%d running)", task.ID, task.Worker, len(s.running))
}

// OnTaskComplete releases the task's worker slot. The task's final status is
// decided by checkpoint validation and recovery, not here.
func (s *Scheduler) OnTaskComplete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[taskID]; !ok {
		s.debugLog("[scheduler] task %s not found in running map", taskID)
		return
	}
	delete(s.running, taskID)
	s.debugLog("[scheduler] task %s released its slot (%d running)", taskID, len(s.running))
}

// RunningCount returns the number of tasks currently in flight.
func (s *Scheduler) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}

// RunningIDs returns the IDs of tasks currently in flight, sorted.
func (s *Scheduler) RunningIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

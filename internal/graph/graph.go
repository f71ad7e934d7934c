// Package graph provides the task dependency graph and plan parsing.
package graph

import (
	"sort"
	"sync"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// TaskGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// A task's dependents only unblock once the task is validated, not merely
// completed.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// dependents is the reverse index of edges.
	dependents map[string][]string
	// order holds task IDs in creation order.
	order []string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:      make(map[string]*models.Task),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		debugLog:   func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *TaskGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Returns a *models.GraphError if an ID is duplicated, a dependency
// references an unknown task, or the graph contains a cycle.
func (g *TaskGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	if len(tasks) == 0 {
		return &models.GraphError{Kind: models.GraphEmptyPlan}
	}

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return &models.GraphError{Kind: models.GraphDuplicateID, TaskID: task.ID}
		}
		g.debugLog("[graph.Build] adding task: id=%s title=%q depends_on=%v", task.ID, task.Title, task.DependsOn)
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order = append(g.order, task.ID)
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return &models.GraphError{Kind: models.GraphUnknownDependency, TaskID: task.ID, Dependency: depID}
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &models.GraphError{Kind: models.GraphCycleDetected, Cycle: cycle}
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// findCycleLocked returns the ordered member path of a cycle (ending where it
// started), or nil if the graph is acyclic. Uses depth-first search with
// coloring; parent links reconstruct the path when a back edge is found.
func (g *TaskGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	parent := make(map[string]string, len(g.nodes))

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: walk parent links from id back to depID.
				path := []string{depID}
				for cur := id; cur != depID; cur = parent[cur] {
					path = append(path, cur)
				}
				// Reverse into depID -> ... -> id, then close the loop.
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = append(path, depID)
				return true
			case 0:
				parent[depID] = id
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	// Walk in creation order so cycle reports are deterministic.
	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder returns task IDs in an order where all dependencies come
// before the tasks that depend on them, using Kahn's algorithm. Ties are
// broken by creation order. Returns a *models.GraphError if the graph
// contains a cycle.
func (g *TaskGraph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = len(g.edges[id])
	}

	var queue []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, depID := range g.dependents[id] {
			indegree[depID]--
			if indegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
		sort.Slice(queue, func(i, j int) bool {
			return g.nodes[queue[i]].Seq < g.nodes[queue[j]].Seq
		})
	}

	if len(result) != len(g.nodes) {
		return nil, &models.GraphError{Kind: models.GraphCycleDetected, Cycle: g.findCycleLocked()}
	}
	return result, nil
}

// Ready returns task IDs whose dependencies are all validated and which are
// still waiting to run (pending or ready). Results are in creation order.
func (g *TaskGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		task := g.nodes[id]
		if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusReady {
			continue
		}

		eligible := true
		for _, depID := range g.edges[id] {
			dep := g.nodes[depID]
			if dep == nil || dep.Status != models.TaskStatusValidated {
				g.debugLog("[graph.Ready] task %s: dep %s not validated", id, depID)
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, id)
		}
	}

	g.debugLog("[graph.Ready] returning %d ready tasks: %v", len(ready), ready)
	return ready
}

// Task returns the task for a given ID, or nil if not found.
func (g *TaskGraph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Tasks returns all tasks in creation order.
func (g *TaskGraph) Tasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, g.nodes[id])
	}
	return tasks
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *TaskGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *TaskGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependents[taskID]
}

// TransitiveDependents returns the IDs of every task downstream of the given
// task, direct or indirect, sorted for deterministic reporting. The given
// task itself is not included.
func (g *TaskGraph) TransitiveDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	stack := append([]string(nil), g.dependents[taskID]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.dependents[id]...)
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// MostRecentlyCompletedDep returns the dependency of taskID with the latest
// completion time, falling back to the last-listed dependency when no
// completion timestamps are recorded. Returns nil if the task has no
// dependencies.
func (g *TaskGraph) MostRecentlyCompletedDep(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.edges[taskID]
	if len(deps) == 0 {
		return nil
	}

	var best *models.Task
	for _, depID := range deps {
		dep := g.nodes[depID]
		if dep == nil {
			continue
		}
		if best == nil {
			best = dep
			continue
		}
		switch {
		case dep.CompletedAt != nil && best.CompletedAt == nil:
			best = dep
		case dep.CompletedAt != nil && best.CompletedAt != nil && dep.CompletedAt.After(*best.CompletedAt):
			best = dep
		case dep.CompletedAt == nil && best.CompletedAt == nil:
			// Neither has a timestamp; prefer the later-listed dependency.
			best = dep
		}
	}
	return best
}

package models

import "time"

// PlanStatus represents the overall state of a plan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusCanceled  PlanStatus = "canceled"
)

// Descriptor is a single task entry in a submitted plan.
// ID may be empty, in which case a synthetic id is assigned by the parser.
type Descriptor struct {
	ID          string   `yaml:"id,omitempty" json:"id,omitempty"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Worker      string   `yaml:"worker" json:"worker"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// PlanDescriptor is the submitted form of a plan: an ordered list of task
// descriptors plus the originating request.
type PlanDescriptor struct {
	Request string       `yaml:"request,omitempty" json:"request,omitempty"`
	Tasks   []Descriptor `yaml:"tasks" json:"tasks"`
}

// Plan is a parsed, validated task graph ready for execution.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// Request is the originating request text, if any.
	Request string `json:"request,omitempty"`
	// Status is the overall plan state.
	Status PlanStatus `json:"status"`
	// Tasks holds the plan's tasks in creation order.
	Tasks []*Task `json:"tasks"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
}

// Task returns the task with the given ID, or nil if not found.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CountByStatus returns the number of tasks in each status.
func (p *Plan) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for _, t := range p.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Settled returns true if every task has reached a state from which the run
// loop has nothing left to do: validated, blocked, or failed with no retry
// pending.
func (p *Plan) Settled() bool {
	for _, t := range p.Tasks {
		if !t.Status.Terminal() && t.Status != TaskStatusFailed {
			return false
		}
	}
	return true
}

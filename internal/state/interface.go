package state

import (
	"io"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// PlanStore handles plan-level persistence operations.
type PlanStore interface {
	SavePlan(p *models.Plan) error
	LoadPlan(id string) (*models.Plan, error)
	UpdatePlanStatus(id string, status models.PlanStatus) error
	ActivePlan() (*models.Plan, error)
	ListPlans() ([]PlanSummary, error)
}

// TaskStore handles task snapshot persistence operations.
type TaskStore interface {
	UpdateTask(planID string, t *models.Task) error
	ResetInterrupted(planID string) (int, error)
}

// ReportStore handles failure report persistence operations.
type ReportStore interface {
	SaveReport(planID string, r *models.FailureReport) error
	ListReports(planID string) ([]models.FailureReport, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for plan state persistence.
// The coordinator works against this interface so any backend can serve it.
// It composes focused sub-interfaces for better modularity.
type Store interface {
	io.Closer
	Migrator
	PlanStore
	TaskStore
	ReportStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store       = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ PlanStore   = (*DB)(nil)
	_ TaskStore   = (*DB)(nil)
	_ ReportStore = (*DB)(nil)
)

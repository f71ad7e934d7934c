package orchestrator

import (
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// savePlanState persists the full plan snapshot.
func (c *Coordinator) savePlanState(plan *models.Plan) {
	if c.stateDB == nil {
		return // No-op if state DB not configured
	}
	if err := c.stateDB.SavePlan(plan); err != nil {
		c.logger.Log("[coordinator] failed to save plan %s: %v", plan.ID, err)
	}
}

// updateTaskState persists a single task's snapshot.
func (c *Coordinator) updateTaskState(planID string, task *models.Task) {
	if c.stateDB == nil {
		return // No-op if state DB not configured
	}
	if err := c.stateDB.UpdateTask(planID, task); err != nil {
		c.logger.Log("[coordinator] failed to update task %s: %v", task.ID, err)
	}
}

// updatePlanStatus persists the plan's final status.
func (c *Coordinator) updatePlanStatus(planID string, status models.PlanStatus) {
	if c.stateDB == nil {
		return // No-op if state DB not configured
	}
	if err := c.stateDB.UpdatePlanStatus(planID, status); err != nil {
		c.logger.Log("[coordinator] failed to update plan %s status: %v", planID, err)
	}
}

// saveReportState persists a failure report.
func (c *Coordinator) saveReportState(planID string, report *models.FailureReport) {
	if c.stateDB == nil {
		return // No-op if state DB not configured
	}
	if err := c.stateDB.SaveReport(planID, report); err != nil {
		c.logger.Log("[coordinator] failed to save failure report for %s: %v", report.TaskID, err)
	}
}

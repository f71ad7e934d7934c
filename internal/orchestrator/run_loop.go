package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/recovery"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// Submit parses the plan descriptor and executes it to completion.
// It returns when every task is validated or blocked, or when the context
// is canceled.
func (c *Coordinator) Submit(ctx context.Context, desc models.PlanDescriptor) (*ExecutionResult, error) {
	plan, g, err := graph.NewParser().Parse(desc)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, plan, g)
}

// SubmitPlan executes an already parsed plan against its graph.
func (c *Coordinator) SubmitPlan(ctx context.Context, plan *models.Plan, g *graph.TaskGraph) (*ExecutionResult, error) {
	return c.execute(ctx, plan, g)
}

// Resume picks up the active plan from the state database. Tasks caught
// mid-flight by the previous run are returned to ready before execution.
func (c *Coordinator) Resume(ctx context.Context) (*ExecutionResult, error) {
	if c.stateDB == nil {
		return nil, fmt.Errorf("resume requires a state database")
	}

	active, err := c.stateDB.ActivePlan()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("no active plan to resume")
	}

	n, err := c.stateDB.ResetInterrupted(active.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		c.logger.Log("[coordinator] reset %d interrupted tasks for plan %s", n, active.ID)
	}

	plan, err := c.stateDB.LoadPlan(active.ID)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	if err := g.Build(plan.Tasks); err != nil {
		return nil, err
	}
	return c.execute(ctx, plan, g)
}

// completion carries the outcome of one worker invocation back to the loop.
type completion struct {
	task   *models.Task
	result *models.WorkerResult
	err    error
}

// execute runs the scheduling loop until the plan settles.
func (c *Coordinator) execute(ctx context.Context, plan *models.Plan, g *graph.TaskGraph) (*ExecutionResult, error) {
	started := time.Now()
	g.SetDebugLog(c.logger.Log)

	sched := NewScheduler(g, c.config.MaxWorkers)
	sched.SetDebugLog(c.logger.Log)
	recoveryMgr := c.newRecoveryManager(g)

	c.savePlanState(plan)
	c.logger.Log("[coordinator] executing plan %s with %d tasks (max workers: %d)",
		plan.ID, len(plan.Tasks), c.config.MaxWorkers)

	cancels := make(map[string]context.CancelFunc)
	var cancelsMu sync.Mutex
	completionCh := make(chan completion, c.config.MaxWorkers)

	var reports []*models.FailureReport
	audit := &auditLog{}

loop:
	for {
		select {
		case <-ctx.Done():
			cancelsMu.Lock()
			for _, cancel := range cancels {
				cancel()
			}
			cancelsMu.Unlock()
			c.wg.Wait()
			return nil, ctx.Err()

		case comp := <-completionCh:
			c.handleCompletion(ctx, plan, sched, recoveryMgr, comp, &cancelsMu, cancels, &reports, audit)

		default:
			ready := sched.Schedule()
			if len(ready) == 0 && sched.RunningCount() == 0 {
				c.logger.Log("[coordinator] plan %s settled: no ready tasks and none in flight", plan.ID)
				break loop
			}

			if len(ready) == 0 {
				// Nothing to schedule, wait for a completion
				select {
				case <-ctx.Done():
					cancelsMu.Lock()
					for _, cancel := range cancels {
						cancel()
					}
					cancelsMu.Unlock()
					c.wg.Wait()
					return nil, ctx.Err()
				case comp := <-completionCh:
					c.handleCompletion(ctx, plan, sched, recoveryMgr, comp, &cancelsMu, cancels, &reports, audit)
				case <-time.After(c.config.PollInterval):
					// Small delay to avoid busy-waiting
				}
				continue
			}

			c.dispatch(ctx, plan, ready, sched, completionCh, &cancelsMu, cancels, audit)
		}
	}

	c.wg.Wait()

	result := c.buildResult(plan, reports, audit.entries, started)
	c.updatePlanStatus(plan.ID, result.Status)
	c.emit(Event{
		Type:     EventPlanCompleted,
		PlanID:   plan.ID,
		Message:  fmt.Sprintf("Plan %s: %d validated, %d blocked", result.Status, len(result.Validated), len(result.Blocked)),
		Duration: result.Duration,
	})
	c.logger.Log("[coordinator] plan %s finished as %s in %s", plan.ID, result.Status, result.Duration)
	return result, nil
}

// dispatch starts workers for the given ready tasks.
func (c *Coordinator) dispatch(ctx context.Context, plan *models.Plan, ready []*models.Task, sched *Scheduler, completionCh chan completion, cancelsMu *sync.Mutex, cancels map[string]context.CancelFunc, audit *auditLog) {
	for _, task := range ready {
		c.emit(Event{
			Type:      EventTaskQueued,
			PlanID:    plan.ID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			Worker:    task.Worker,
			Message:   fmt.Sprintf("Task queued: %s", task.Title),
		})

		sched.OnTaskStart(task)
		now := time.Now()
		task.Status = models.TaskStatusRunning
		task.StartedAt = &now
		c.updateTaskState(plan.ID, task)

		c.emit(Event{
			Type:      EventTaskStarted,
			PlanID:    plan.ID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			Worker:    task.Worker,
			Attempt:   task.RetryCount + 1,
			Message:   fmt.Sprintf("Task started: %s (%s)", task.Title, task.Worker),
		})
		audit.record(AuditDispatch, task, task.RetryCount+1, "")

		taskCtx, cancel := context.WithTimeout(ctx, c.config.TaskTimeout)
		cancelsMu.Lock()
		cancels[task.ID] = cancel
		cancelsMu.Unlock()

		inv, err := c.registry.Resolve(task.Worker)
		if err != nil {
			// An unresolvable worker fails the task through the normal path
			// so recovery sees it.
			c.wg.Add(1)
			go func(t *models.Task, resolveErr error) {
				defer c.wg.Done()
				select {
				case completionCh <- completion{task: t, err: resolveErr}:
				case <-ctx.Done():
				}
			}(task, err)
			continue
		}

		c.wg.Add(1)
		go func(t *models.Task, inv worker.Invoker) {
			defer c.wg.Done()
			result, err := inv.Invoke(taskCtx, t)
			select {
			case completionCh <- completion{task: t, result: result, err: err}:
			case <-ctx.Done():
			}
		}(task, inv)
	}
}

// handleCompletion processes one worker outcome: a successful completion
// runs the checkpoint; any failure goes through recovery.
func (c *Coordinator) handleCompletion(ctx context.Context, plan *models.Plan, sched *Scheduler, recoveryMgr *recovery.Manager, comp completion, cancelsMu *sync.Mutex, cancels map[string]context.CancelFunc, reports *[]*models.FailureReport, audit *auditLog) {
	task := comp.task
	sched.OnTaskComplete(task.ID)

	cancelsMu.Lock()
	if cancel, ok := cancels[task.ID]; ok {
		cancel()
		delete(cancels, task.ID)
	}
	cancelsMu.Unlock()

	if comp.err != nil {
		c.handleFailure(ctx, plan, recoveryMgr, task, comp.err, reports, audit)
		return
	}

	now := time.Now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.Error = ""
	if comp.result != nil {
		task.Artifacts = comp.result.Artifacts
		task.KBUpdates = comp.result.KBUpdates
		c.addTokens(comp.result.InputTokens, comp.result.OutputTokens)
	}
	c.updateTaskState(plan.ID, task)

	input, output := c.tokenTotals()
	c.emit(Event{
		Type:       EventTaskCompleted,
		PlanID:     plan.ID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		Worker:     task.Worker,
		Message:    fmt.Sprintf("Task completed: %s", task.Title),
		TokensUsed: input + output,
	})

	c.applyKBUpdates(task, comp.result)

	cpResult, err := c.validator.Validate(ctx, task, comp.result)
	if err != nil {
		c.logger.Log("[coordinator] checkpoint for %s errored: %v", task.ID, err)
		c.handleFailure(ctx, plan, recoveryMgr, task, err, reports, audit)
		return
	}
	if !cpResult.Passed {
		c.logger.Log("[coordinator] checkpoint for %s failed at %s", task.ID, cpResult.FailedStage())
		audit.record(AuditCheckpointFail, task, task.RetryCount+1, string(cpResult.FailedStage()))
		c.handleFailure(ctx, plan, recoveryMgr, task, cpResult.Err(), reports, audit)
		return
	}
	audit.record(AuditCheckpointPass, task, task.RetryCount+1, "")

	validatedAt := time.Now()
	task.Status = models.TaskStatusValidated
	task.ValidatedAt = &validatedAt
	c.updateTaskState(plan.ID, task)

	c.emit(Event{
		Type:      EventTaskValidated,
		PlanID:    plan.ID,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Worker:    task.Worker,
		Message:   fmt.Sprintf("Task validated: %s", task.Title),
	})
}

// handleFailure routes a failed task through recovery and emits the outcome.
func (c *Coordinator) handleFailure(ctx context.Context, plan *models.Plan, recoveryMgr *recovery.Manager, task *models.Task, cause error, reports *[]*models.FailureReport, audit *auditLog) {
	task.Status = models.TaskStatusFailed
	attempt := task.RetryCount + 1
	outcome, err := recoveryMgr.Recover(ctx, task, cause)
	if err != nil {
		c.logger.Log("[coordinator] recovery for %s errored: %v", task.ID, err)
		task.Status = models.TaskStatusBlocked
		task.BlockedReason = err.Error()
		c.updateTaskState(plan.ID, task)
		audit.record(AuditBlock, task, attempt, err.Error())
		return
	}
	audit.record(AuditClassified, task, attempt, string(outcome.Kind))

	if outcome.Retry {
		c.updateTaskState(plan.ID, task)
		audit.record(AuditRetry, task, task.RetryCount, outcome.ClarifiedBy)
		c.emit(Event{
			Type:      EventTaskRetry,
			PlanID:    plan.ID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			Worker:    task.Worker,
			Attempt:   task.RetryCount,
			Error:     cause,
			Message:   fmt.Sprintf("Task retrying (%d/%d): %s", task.RetryCount, recoveryMgr.MaxRetries(), task.Title),
		})
		return
	}

	// Fundamental: the failed task and its dependents are now blocked.
	for _, id := range outcome.Blocked {
		if blocked := plan.Task(id); blocked != nil {
			c.updateTaskState(plan.ID, blocked)
		}
	}
	if outcome.Report != nil {
		*reports = append(*reports, outcome.Report)
		c.saveReportState(plan.ID, outcome.Report)
	}
	audit.record(AuditBlock, task, attempt, strings.Join(outcome.Blocked, ","))

	c.emit(Event{
		Type:      EventTaskBlocked,
		PlanID:    plan.ID,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Worker:    task.Worker,
		Error:     cause,
		Blocked:   outcome.Blocked,
		Message:   fmt.Sprintf("Task blocked after %d attempts: %s", task.RetryCount+1, task.Title),
	})
}

// applyKBUpdates records the task's knowledge base updates so the checkpoint
// sync stage can verify them.
func (c *Coordinator) applyKBUpdates(task *models.Task, result *models.WorkerResult) {
	if c.kb == nil || result == nil {
		return
	}
	for _, key := range result.KBUpdates {
		err := c.kb.Append(&kb.Record{
			Key:     key,
			Kind:    kb.KindDecision,
			Worker:  task.Worker,
			Summary: task.Title,
			TaskID:  task.ID,
		})
		if err != nil {
			c.logger.Log("[coordinator] kb update %s for task %s failed: %v", key, task.ID, err)
		}
	}
}

// emit sends an event with a timestamp attached.
func (c *Coordinator) emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.emitter.Emit(event)
}

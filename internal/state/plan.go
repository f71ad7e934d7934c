package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// PlanSummary is a lightweight view of a persisted plan.
type PlanSummary struct {
	ID        string
	Request   string
	Status    models.PlanStatus
	TaskCount int
	CreatedAt time.Time
}

// SavePlan persists a full plan snapshot: the plan row plus every task row.
// Saving an existing plan replaces its snapshot.
func (db *DB) SavePlan(p *models.Plan) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO plans (id, request, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET request = excluded.request, status = excluded.status
	`, p.ID, p.Request, string(p.Status), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save plan %s: %w", p.ID, err)
	}

	for _, t := range p.Tasks {
		if err := upsertTask(tx, p.ID, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan %s: %w", p.ID, err)
	}
	return nil
}

// LoadPlan reloads a plan snapshot with its tasks in creation order.
func (db *DB) LoadPlan(id string) (*models.Plan, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p := &models.Plan{ID: id}
	var status, createdAt string
	row := db.conn.QueryRow("SELECT request, status, created_at FROM plans WHERE id = ?", id)
	if err := row.Scan(&p.Request, &status, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plan %s not found", id)
		}
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	p.Status = models.PlanStatus(status)
	if t, err := parseTime(createdAt); err == nil {
		p.CreatedAt = t
	}

	tasks, err := db.loadTasksLocked(id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return p, nil
}

// UpdatePlanStatus updates just the status column of a plan.
func (db *DB) UpdatePlanStatus(id string, status models.PlanStatus) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec("UPDATE plans SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return nil
}

// ActivePlan returns the most recently created active plan, or nil when no
// plan is active.
func (db *DB) ActivePlan() (*models.Plan, error) {
	db.mu.RLock()
	var id string
	row := db.conn.QueryRow("SELECT id FROM plans WHERE status = 'active' ORDER BY created_at DESC LIMIT 1")
	err := row.Scan(&id)
	db.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active plan: %w", err)
	}
	return db.LoadPlan(id)
}

// ListPlans returns summaries of all persisted plans, newest first.
func (db *DB) ListPlans() ([]PlanSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT p.id, p.request, p.status, p.created_at,
			(SELECT COUNT(*) FROM tasks t WHERE t.plan_id = p.id)
		FROM plans p
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var summaries []PlanSummary
	for rows.Next() {
		var s PlanSummary
		var status, createdAt string
		if err := rows.Scan(&s.ID, &s.Request, &status, &createdAt, &s.TaskCount); err != nil {
			return nil, fmt.Errorf("scan plan summary: %w", err)
		}
		s.Status = models.PlanStatus(status)
		if t, err := parseTime(createdAt); err == nil {
			s.CreatedAt = t
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// UpdateTask persists a single task's current snapshot.
func (db *DB) UpdateTask(planID string, t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTask(tx, planID, t); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetInterrupted returns tasks caught mid-flight by a crash to the ready
// state so a resumed run can dispatch them again. It returns the number of
// tasks reset.
func (db *DB) ResetInterrupted(planID string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`
		UPDATE tasks SET status = ?, started_at = NULL
		WHERE plan_id = ? AND status = ?
	`, string(models.TaskStatusReady), planID, string(models.TaskStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset interrupted tasks: %w", err)
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

// SaveReport persists a failure report for a plan.
func (db *DB) SaveReport(planID string, r *models.FailureReport) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	blocked, err := json.Marshal(r.BlockedTasks)
	if err != nil {
		return fmt.Errorf("marshal blocked tasks: %w", err)
	}
	options, err := json.Marshal(r.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO failure_reports (plan_id, task_id, worker, kind, reason, attempts, blocked_tasks, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, planID, r.TaskID, r.Worker, string(r.Kind), r.Reason, r.Attempts, string(blocked), string(options), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("save failure report for %s: %w", r.TaskID, err)
	}
	return nil
}

// ListReports returns the failure reports for a plan in the order they were
// recorded.
func (db *DB) ListReports(planID string) ([]models.FailureReport, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT task_id, worker, kind, reason, attempts, blocked_tasks, options, created_at
		FROM failure_reports
		WHERE plan_id = ?
		ORDER BY seq
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list failure reports: %w", err)
	}
	defer rows.Close()

	var reports []models.FailureReport
	for rows.Next() {
		var r models.FailureReport
		var kind, createdAt string
		var blocked, options sql.NullString
		if err := rows.Scan(&r.TaskID, &r.Worker, &kind, &r.Reason, &r.Attempts, &blocked, &options, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failure report: %w", err)
		}
		r.Kind = models.FailureKind(kind)
		if blocked.Valid {
			json.Unmarshal([]byte(blocked.String), &r.BlockedTasks)
		}
		if options.Valid {
			json.Unmarshal([]byte(options.String), &r.Options)
		}
		if t, err := parseTime(createdAt); err == nil {
			r.CreatedAt = t
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func upsertTask(tx *sql.Tx, planID string, t *models.Task) error {
	dependsOn, err := json.Marshal(t.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on for %s: %w", t.ID, err)
	}
	context, err := json.Marshal(t.Context)
	if err != nil {
		return fmt.Errorf("marshal context for %s: %w", t.ID, err)
	}
	artifacts, err := json.Marshal(t.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts for %s: %w", t.ID, err)
	}
	kbUpdates, err := json.Marshal(t.KBUpdates)
	if err != nil {
		return fmt.Errorf("marshal kb_updates for %s: %w", t.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (
			id, plan_id, seq, title, description, worker, status,
			depends_on, context, artifacts, kb_updates,
			retry_count, error, blocked_reason,
			created_at, started_at, completed_at, validated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_id, id) DO UPDATE SET
			seq = excluded.seq,
			title = excluded.title,
			description = excluded.description,
			worker = excluded.worker,
			status = excluded.status,
			depends_on = excluded.depends_on,
			context = excluded.context,
			artifacts = excluded.artifacts,
			kb_updates = excluded.kb_updates,
			retry_count = excluded.retry_count,
			error = excluded.error,
			blocked_reason = excluded.blocked_reason,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			validated_at = excluded.validated_at
	`, t.ID, planID, t.Seq, t.Title, t.Description, t.Worker, string(t.Status),
		string(dependsOn), string(context), string(artifacts), string(kbUpdates),
		t.RetryCount, t.Error, t.BlockedReason,
		formatTime(t.CreatedAt), formatNullableTime(t.StartedAt),
		formatNullableTime(t.CompletedAt), formatNullableTime(t.ValidatedAt))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// loadTasksLocked loads all tasks for a plan, ordered by seq.
// Caller must hold at least a read lock.
func (db *DB) loadTasksLocked(planID string) ([]*models.Task, error) {
	rows, err := db.conn.Query(`
		SELECT id, seq, title, description, worker, status,
			depends_on, context, artifacts, kb_updates,
			retry_count, error, blocked_reason,
			created_at, started_at, completed_at, validated_at
		FROM tasks
		WHERE plan_id = ?
		ORDER BY seq
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("load tasks for %s: %w", planID, err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{PlanID: planID}
		var status, createdAt string
		var description, errMsg, blockedReason sql.NullString
		var dependsOn, taskCtx, artifacts, kbUpdates sql.NullString
		var startedAt, completedAt, validatedAt sql.NullString
		err := rows.Scan(&t.ID, &t.Seq, &t.Title, &description, &t.Worker, &status,
			&dependsOn, &taskCtx, &artifacts, &kbUpdates,
			&t.RetryCount, &errMsg, &blockedReason,
			&createdAt, &startedAt, &completedAt, &validatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = models.TaskStatus(status)
		t.Description = description.String
		t.Error = errMsg.String
		t.BlockedReason = blockedReason.String
		if dependsOn.Valid {
			json.Unmarshal([]byte(dependsOn.String), &t.DependsOn)
		}
		if taskCtx.Valid {
			json.Unmarshal([]byte(taskCtx.String), &t.Context)
		}
		if artifacts.Valid {
			json.Unmarshal([]byte(artifacts.String), &t.Artifacts)
		}
		if kbUpdates.Valid {
			json.Unmarshal([]byte(kbUpdates.String), &t.KBUpdates)
		}
		if ct, err := parseTime(createdAt); err == nil {
			t.CreatedAt = ct
		}
		t.StartedAt = parseNullableTime(startedAt)
		t.CompletedAt = parseNullableTime(completedAt)
		t.ValidatedAt = parseNullableTime(validatedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

package orchestrator

import (
	"time"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// AuditAction names a coordinator decision recorded in the audit log.
type AuditAction string

const (
	// AuditDispatch records a task handed to a worker.
	AuditDispatch AuditAction = "dispatch"
	// AuditCheckpointPass and AuditCheckpointFail record checkpoint verdicts.
	AuditCheckpointPass AuditAction = "checkpoint_pass"
	AuditCheckpointFail AuditAction = "checkpoint_fail"
	// AuditClassified records how a failure was classified.
	AuditClassified AuditAction = "classified"
	// AuditRetry records a task returned to ready after a fixable failure.
	AuditRetry AuditAction = "retry"
	// AuditBlock records a task blocked along with its dependents.
	AuditBlock AuditAction = "block"
)

// AuditEntry is one entry in a plan's decision log, in the order the
// coordinator made the decision. The event stream may drop entries under a
// slow consumer; the audit log never does.
type AuditEntry struct {
	Action AuditAction
	TaskID string
	Worker string
	// Attempt is the 1-based attempt the entry refers to.
	Attempt int
	// Detail carries action-specific context: the failed checkpoint stage,
	// the failure classification, or the blocked task list.
	Detail    string
	Timestamp time.Time
}

// auditLog accumulates entries in decision order. It is only touched from
// the run loop goroutine, so no locking is needed.
type auditLog struct {
	entries []AuditEntry
}

func (a *auditLog) record(action AuditAction, task *models.Task, attempt int, detail string) {
	a.entries = append(a.entries, AuditEntry{
		Action:    action,
		TaskID:    task.ID,
		Worker:    task.Worker,
		Attempt:   attempt,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/checkpoint"
	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/recovery"
	"github.com/RhettArk/multi-agent-dev-team/internal/state"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

const (
	// DefaultMaxWorkers is the default concurrency limit for a plan.
	DefaultMaxWorkers = 3
	// DefaultTaskTimeout bounds a single worker invocation.
	DefaultTaskTimeout = 10 * time.Minute
	// defaultPollInterval paces the run loop when nothing is schedulable.
	defaultPollInterval = 100 * time.Millisecond
	// eventBufferSize is the emitter buffer; slow consumers drop events
	// rather than stall the loop.
	eventBufferSize = 64
)

// Config contains configuration options for the Coordinator.
type Config struct {
	// ProjectRoot is the directory the plan operates on.
	ProjectRoot string
	// MaxWorkers is the maximum number of concurrent workers.
	// If 0, DefaultMaxWorkers is used.
	MaxWorkers int
	// MaxRetries is the retry budget per task for fixable failures.
	// If 0, the recovery default is used.
	MaxRetries int
	// TaskTimeout bounds a single worker invocation.
	// If 0, DefaultTaskTimeout is used.
	TaskTimeout time.Duration
	// PollInterval paces the run loop when no task is schedulable.
	// If 0, a small default is used.
	PollInterval time.Duration
	// Registry resolves worker names to invokers.
	Registry *worker.Registry
	// Validator runs the completion checkpoint.
	// If nil, one is built from KB and Registry with default review rules.
	Validator *checkpoint.Validator
	// KB is the shared knowledge base. Optional.
	KB kb.Store
	// StateDB persists plan snapshots for resumability. Optional.
	StateDB state.Store
	// Logger receives debug output. Optional.
	Logger *DebugLogger
}

// ExecutionResult summarizes a finished plan execution.
type ExecutionResult struct {
	// PlanID identifies the executed plan.
	PlanID string
	// Status is the plan's final status.
	Status models.PlanStatus
	// Validated lists tasks that passed their checkpoint, in task order.
	Validated []string
	// Blocked lists tasks left blocked, in task order.
	Blocked []string
	// Reports holds the failure reports produced during execution.
	Reports []*models.FailureReport
	// Audit is the ordered decision log for the run: one entry per
	// dispatch, checkpoint verdict, failure classification, retry, and
	// block. Unlike the event stream, it is complete.
	Audit []AuditEntry
	// Duration is the wall-clock execution time.
	Duration time.Duration
	// InputTokens and OutputTokens total the workers' token usage.
	InputTokens  int64
	OutputTokens int64
	// DroppedEvents counts progress events dropped by slow consumers.
	DroppedEvents uint64
}

// Coordinator executes plans: it parses the descriptor into a task graph,
// schedules ready tasks onto bounded worker slots, checkpoints each
// completion, and recovers from failures. One Coordinator can execute plans
// sequentially; Submit is not reentrant.
type Coordinator struct {
	config    Config
	registry  *worker.Registry
	validator *checkpoint.Validator
	kb        kb.Store
	stateDB   state.Store
	emitter   *EventEmitter
	logger    *DebugLogger

	// tokensMu protects the running token totals.
	tokensMu     sync.Mutex
	inputTokens  int64
	outputTokens int64

	// wg tracks worker goroutines for a clean shutdown.
	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator from the given config.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("coordinator requires a worker registry")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger()
	}

	validator := cfg.Validator
	if validator == nil {
		validator = checkpoint.NewValidator(cfg.KB, cfg.Registry, nil)
	}

	return &Coordinator{
		config:    cfg,
		registry:  cfg.Registry,
		validator: validator,
		kb:        cfg.KB,
		stateDB:   cfg.StateDB,
		emitter:   NewEventEmitter(eventBufferSize),
		logger:    cfg.Logger,
	}, nil
}

// Events returns the coordinator's progress event stream.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.Events()
}

// Close closes the event stream. Call it after the final Submit or Resume;
// consumers ranging over Events receive the remaining buffered events and
// then stop.
func (c *Coordinator) Close() {
	c.emitter.Close()
}

// newRecoveryManager builds the recovery manager for a plan's graph.
func (c *Coordinator) newRecoveryManager(g *graph.TaskGraph) *recovery.Manager {
	m := recovery.NewManager(g, c.registry, c.kb, recovery.NewClassifier(c.config.MaxRetries))
	m.SetDebugLog(c.logger.Log)
	return m
}

// addTokens accumulates worker token usage.
func (c *Coordinator) addTokens(input, output int64) {
	c.tokensMu.Lock()
	c.inputTokens += input
	c.outputTokens += output
	c.tokensMu.Unlock()
}

// tokenTotals returns the accumulated token usage.
func (c *Coordinator) tokenTotals() (int64, int64) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	return c.inputTokens, c.outputTokens
}

// buildResult assembles the execution result from the settled plan.
func (c *Coordinator) buildResult(plan *models.Plan, reports []*models.FailureReport, audit []AuditEntry, started time.Time) *ExecutionResult {
	result := &ExecutionResult{
		PlanID:   plan.ID,
		Reports:  reports,
		Audit:    audit,
		Duration: time.Since(started),
	}
	for _, task := range plan.Tasks {
		switch task.Status {
		case models.TaskStatusValidated:
			result.Validated = append(result.Validated, task.ID)
		case models.TaskStatusBlocked:
			result.Blocked = append(result.Blocked, task.ID)
		}
	}

	switch {
	case len(result.Blocked) > 0:
		result.Status = models.PlanStatusFailed
	case len(result.Validated) == len(plan.Tasks):
		result.Status = models.PlanStatusCompleted
	default:
		result.Status = models.PlanStatusFailed
	}
	plan.Status = result.Status

	result.InputTokens, result.OutputTokens = c.tokenTotals()
	result.DroppedEvents = c.emitter.DroppedCount()
	return result
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RhettArk/multi-agent-dev-team/internal/checkpoint"
	"github.com/RhettArk/multi-agent-dev-team/internal/config"
	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/kb"
	"github.com/RhettArk/multi-agent-dev-team/internal/orchestrator"
	"github.com/RhettArk/multi-agent-dev-team/internal/state"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

var (
	runListFile   string
	runRequest    string
	runResume     bool
	runMaxWorkers int
)

var runCmd = &cobra.Command{
	Use:   "run [plan.yaml]",
	Short: "Execute a development plan",
	Long: `Execute a development plan with the worker team.

Plans are YAML files binding tasks to workers:

  request: Add JWT authentication
  tasks:
    - id: task-1
      title: Design the token schema
      worker: backend-architect
    - id: task-2
      title: Implement the endpoints
      worker: fastapi-specialist
      depends_on: [task-1]

Alternatively, --list reads a numbered task list:

  1. backend-architect: Design the token schema
  2. fastapi-specialist: Implement the endpoints (depends on: 1)

Use --resume to continue the active plan after an interruption. Tasks
that were mid-flight are re-run; validated tasks are not repeated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().StringVar(&runListFile, "list", "", "Read tasks from a numbered task list file")
	runCmd.Flags().StringVar(&runRequest, "request", "", "Request description for --list plans")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume the active plan")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Override the concurrency limit")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if !runResume && len(args) == 0 && runListFile == "" {
		return fmt.Errorf("provide a plan file, --list, or --resume")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxWorkers > 0 {
		cfg.Execution.MaxWorkers = runMaxWorkers
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	db, err := state.OpenProject(projectRoot)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	kbPath := cfg.KB.Path
	if !filepath.IsAbs(kbPath) {
		kbPath = filepath.Join(projectRoot, kbPath)
	}
	store, err := kb.OpenSQLite(kbPath)
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}
	defer store.Close()

	registry, client, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	rules, err := checkpoint.LoadReviewRules(cfg.Review.RulesPath)
	if err != nil {
		return fmt.Errorf("load review rules: %w", err)
	}

	logger := orchestrator.NewDebugLoggerForProject(projectRoot)
	defer logger.Close()

	// Edits to .devteam.yaml during a run are picked up for the next run.
	if projectConfig := config.GetProjectConfigPath(); projectConfig != "" {
		watchErr := config.Watch(projectConfig, func(fresh *config.Config) {
			logger.Log("[cli] %s changed: max_workers=%d max_retries=%d task_timeout=%s (applies to the next run)",
				filepath.Base(projectConfig), fresh.Execution.MaxWorkers, fresh.Execution.MaxRetries, fresh.Execution.TaskTimeout)
		})
		if watchErr != nil {
			logger.Log("[cli] config watch unavailable: %v", watchErr)
		}
	}

	coord, err := orchestrator.NewCoordinator(orchestrator.Config{
		ProjectRoot: projectRoot,
		MaxWorkers:  cfg.Execution.MaxWorkers,
		MaxRetries:  cfg.Execution.MaxRetries,
		TaskTimeout: cfg.Execution.TaskTimeout,
		Registry:    registry,
		Validator:   checkpoint.NewValidator(store, registry, rules),
		KB:          store,
		StateDB:     db,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	eventsDone := make(chan struct{})
	go func() {
		consumeEvents(coord.Events())
		close(eventsDone)
	}()

	started := time.Now()
	var result *orchestrator.ExecutionResult
	switch {
	case runResume:
		result, err = coord.Resume(ctx)
	case runListFile != "":
		text, readErr := os.ReadFile(runListFile)
		if readErr != nil {
			return fmt.Errorf("read task list: %w", readErr)
		}
		plan, g, parseErr := graph.NewParser().ParseTaskList(runRequest, string(text))
		if parseErr != nil {
			return parseErr
		}
		result, err = coord.SubmitPlan(ctx, plan, g)
	default:
		data, readErr := os.ReadFile(args[0])
		if readErr != nil {
			return fmt.Errorf("read plan file: %w", readErr)
		}
		var desc models.PlanDescriptor
		if yamlErr := yaml.Unmarshal(data, &desc); yamlErr != nil {
			return fmt.Errorf("parse plan file: %w", yamlErr)
		}
		result, err = coord.Submit(ctx, desc)
	}
	// Close the event stream so the consumer drains what is buffered and
	// exits before the summary prints.
	coord.Close()
	<-eventsDone

	if err != nil {
		return fmt.Errorf("plan execution failed: %w", err)
	}

	printResult(result, client.Usage(), time.Since(started))
	if result.Status != models.PlanStatusCompleted {
		os.Exit(1)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RhettArk/multi-agent-dev-team/internal/graph"
	"github.com/RhettArk/multi-agent-dev-team/internal/state"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show plan state for this project",
	Long: `Display the state of plans in this project.

Shows:
  - The active plan and its per-task status
  - Failure reports with the caller's options
  - Recently finished plans`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No plans yet. Run 'devteam run <plan.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Ensure schema is up to date
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	active, err := db.ActivePlan()
	if err != nil {
		return fmt.Errorf("get active plan: %w", err)
	}

	if active == nil {
		fmt.Println("No active plan.")
	} else {
		displayPlan(active)
		if err := displayReports(db, active.ID); err != nil {
			return err
		}
		fmt.Println()
	}

	return displayRecentPlans(db)
}

func displayPlan(p *models.Plan) {
	fmt.Printf("Active Plan: %s\n", p.ID)
	if p.Request != "" {
		fmt.Printf("  Request: %s\n", p.Request)
	}
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(p.CreatedAt)))

	counts := p.CountByStatus()
	var parts []string
	for _, status := range []models.TaskStatus{
		models.TaskStatusValidated,
		models.TaskStatusCompleted,
		models.TaskStatusRunning,
		models.TaskStatusReady,
		models.TaskStatusPending,
		models.TaskStatusFailed,
		models.TaskStatusBlocked,
	} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	fmt.Printf("  Tasks: %s\n", strings.Join(parts, ", "))
	fmt.Println()

	for _, task := range planOrder(p) {
		marker := statusColor(task.Status)
		line := fmt.Sprintf("  %-8s %s  %s (%s)", task.Status, task.ID, task.Title, task.Worker)
		if task.Status == models.TaskStatusBlocked && task.BlockedReason != "" {
			line += "  [" + task.BlockedReason + "]"
		}
		if task.RetryCount > 0 {
			line += fmt.Sprintf("  (retries: %d)", task.RetryCount)
		}
		marker.Println(line)
	}
}

// planOrder lists tasks with dependencies before their dependents, so the
// status output reads in execution order. A plan that does not form a valid
// graph falls back to stored order.
func planOrder(p *models.Plan) []*models.Task {
	g := graph.New()
	if err := g.Build(p.Tasks); err != nil {
		return p.Tasks
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return p.Tasks
	}

	tasks := make([]*models.Task, 0, len(order))
	for _, id := range order {
		if task := p.Task(id); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func statusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusValidated:
		return boldGreen
	case models.TaskStatusCompleted:
		return greenText
	case models.TaskStatusRunning:
		return cyanText
	case models.TaskStatusFailed:
		return yellowText
	case models.TaskStatusBlocked:
		return redText
	default:
		return dimText
	}
}

func displayReports(db *state.DB, planID string) error {
	reports, err := db.ListReports(planID)
	if err != nil {
		return fmt.Errorf("list failure reports: %w", err)
	}
	for _, r := range reports {
		fmt.Println()
		redText.Printf("  Failure: %s (%s) after %d attempts\n", r.TaskID, r.Worker, r.Attempts)
		fmt.Printf("    %s\n", r.Reason)
		fmt.Printf("    Options: %s\n", strings.Join(optionStrings(r.Options), ", "))
	}
	return nil
}

func displayRecentPlans(db *state.DB) error {
	plans, err := db.ListPlans()
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	var recent []state.PlanSummary
	for _, p := range plans {
		if p.Status != models.PlanStatusActive {
			recent = append(recent, p)
			if len(recent) >= 5 {
				break
			}
		}
	}

	if len(recent) == 0 {
		return nil
	}

	fmt.Println("Recent Plans:")
	for _, p := range recent {
		fmt.Printf("  %s: %s, %d tasks (%s ago)\n",
			p.ID, p.Status, p.TaskCount, formatDuration(time.Since(p.CreatedAt)))
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

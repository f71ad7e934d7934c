package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/RhettArk/multi-agent-dev-team/internal/orchestrator"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

var (
	dimText    = color.New(color.Faint)
	cyanText   = color.New(color.FgCyan)
	greenText  = color.New(color.FgGreen)
	boldGreen  = color.New(color.FgGreen, color.Bold)
	yellowText = color.New(color.FgYellow)
	redText    = color.New(color.FgRed)
	boldText   = color.New(color.Bold)
)

// consumeEvents prints coordinator events to stdout as they arrive.
func consumeEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		printEvent(ev)
	}
}

func printEvent(ev orchestrator.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case orchestrator.EventTaskQueued:
		dimText.Printf("[%s] queued    %s  %s\n", ts, ev.TaskID, ev.TaskTitle)
	case orchestrator.EventTaskStarted:
		cyanText.Printf("[%s] started   %s  %s (%s)\n", ts, ev.TaskID, ev.TaskTitle, ev.Worker)
	case orchestrator.EventTaskCompleted:
		greenText.Printf("[%s] completed %s  %s\n", ts, ev.TaskID, ev.TaskTitle)
	case orchestrator.EventTaskValidated:
		boldGreen.Printf("[%s] validated %s  %s\n", ts, ev.TaskID, ev.TaskTitle)
	case orchestrator.EventTaskRetry:
		yellowText.Printf("[%s] retry     %s  attempt %d: %v\n", ts, ev.TaskID, ev.Attempt+1, ev.Error)
	case orchestrator.EventTaskBlocked:
		redText.Printf("[%s] blocked   %s  %v\n", ts, ev.TaskID, ev.Error)
		if len(ev.Blocked) > 1 {
			redText.Printf("           also blocked: %s\n", strings.Join(ev.Blocked[1:], ", "))
		}
	case orchestrator.EventPlanCompleted:
		boldText.Printf("[%s] %s\n", ts, ev.Message)
	}
}

// printResult prints the final plan summary.
func printResult(result *orchestrator.ExecutionResult, usage *worker.UsageTracker, elapsed time.Duration) {
	fmt.Println()
	if result.Status == models.PlanStatusCompleted {
		boldGreen.Printf("Plan %s completed.\n", result.PlanID)
	} else {
		redText.Printf("Plan %s %s.\n", result.PlanID, result.Status)
	}
	fmt.Printf("  Validated: %d\n", len(result.Validated))
	if len(result.Blocked) > 0 {
		fmt.Printf("  Blocked:   %s\n", strings.Join(result.Blocked, ", "))
	}
	fmt.Printf("  Duration:  %s\n", elapsed.Round(time.Second))

	input, output := usage.Total()
	if input+output > 0 {
		fmt.Printf("  Tokens:    %d in / %d out across %d calls ($%.2f)\n",
			input, output, usage.Calls(), usage.Cost())
	}

	for _, report := range result.Reports {
		fmt.Println()
		redText.Printf("Failure report for %s (%s):\n", report.TaskID, report.Worker)
		fmt.Printf("  Reason:   %s\n", report.Reason)
		fmt.Printf("  Attempts: %d\n", report.Attempts)
		fmt.Printf("  Blocked:  %s\n", strings.Join(report.BlockedTasks, ", "))
		fmt.Printf("  Options:  %s\n", strings.Join(optionStrings(report.Options), ", "))
	}
}

func optionStrings(options []models.FailureOption) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = string(o)
	}
	return out
}

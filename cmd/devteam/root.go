package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devteam",
	Short: "Multi-agent development team coordinator",
	Long: `Devteam executes development plans with a team of specialist workers.

A plan is a set of tasks with dependencies. Each task is bound to a worker
(backend-architect, fastapi-specialist, test-engineer, ...). The coordinator
runs independent tasks in parallel, validates every completion through a
four-stage checkpoint, and recovers from failures with bounded retries.

Core behavior:
- Tasks run only after all their dependencies are validated
- Completed work is peer reviewed before dependents are released
- Fixable failures retry with clarification from upstream tasks
- Fundamental failures block only the affected subtree
- State is persisted so interrupted plans can resume`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

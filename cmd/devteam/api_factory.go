package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/RhettArk/multi-agent-dev-team/internal/config"
	"github.com/RhettArk/multi-agent-dev-team/internal/worker"
)

// defaultRoles describes the built-in worker team. Config entries under
// "workers" extend or override these.
var defaultRoles = map[string]string{
	"backend-architect":     "You design and implement backend services: API shapes, module boundaries, data flow, and error handling.",
	"frontend-architect":    "You design and implement frontend applications: component structure, state management, and data fetching.",
	"fastapi-specialist":    "You implement FastAPI endpoints, dependency wiring, validation, and middleware.",
	"react-specialist":      "You implement React components, hooks, and client-side state.",
	"database-specialist":   "You design schemas, write migrations, and tune queries.",
	"test-engineer":         "You write thorough automated tests and report coverage gaps.",
	"docs-writer":           "You write developer-facing documentation for the work produced by other tasks.",
	"devops-engineer":       "You handle build pipelines, deployment configuration, and runtime infrastructure.",
	"code-reviewer":         "You review completed work for correctness, clarity, and maintainability.",
	"code-quality-frontend": "You review frontend work for accessibility, rendering performance, and component hygiene.",
}

// newRegistry builds the worker registry from the config. Every role gets an
// API-backed invoker sharing one client; unknown worker names fall back to a
// generalist.
func newRegistry(cfg *config.Config) (*worker.Registry, *worker.Client, error) {
	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.Anthropic.UseAWSBedrock {
		return nil, nil, err
	}

	client, err := worker.NewClient(worker.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}

	roles := make(map[string]string, len(defaultRoles)+len(cfg.Workers))
	for name, role := range defaultRoles {
		roles[name] = role
	}
	for name, role := range cfg.Workers {
		roles[name] = role
	}

	registry := worker.NewRegistry()
	for name, role := range roles {
		registry.Register(name, worker.NewAPIInvoker(name, role, client))
	}
	registry.SetFallback(worker.NewAPIInvoker(
		"generalist",
		"You are a senior software engineer handling tasks outside the team's specialties.",
		client,
	))

	return registry, client, nil
}

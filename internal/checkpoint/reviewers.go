package checkpoint

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// defaultReviewer reviews general work.
const defaultReviewer = "code-reviewer"

// frontendReviewer reviews frontend-flavored work.
const frontendReviewer = "code-quality-frontend"

// defaultFrontendKeywords route a worker to the frontend reviewer when its
// name contains one of these substrings.
var defaultFrontendKeywords = []string{"frontend", "ui", "javascript"}

// defaultDomainExtras adds a second, domain-specific reviewer for certain
// workers on top of the general reviewer.
var defaultDomainExtras = map[string]string{
	"fastapi-specialist":  "backend-architect",
	"database-specialist": "backend-architect",
	"react-specialist":    "frontend-architect",
}

// ReviewRules selects peer reviewers for a worker's completed task.
// Reviewer workers themselves are exempt from peer review.
type ReviewRules struct {
	mu sync.RWMutex
	// General is the default reviewer worker.
	General string `yaml:"general"`
	// Frontend is the reviewer for frontend-flavored workers.
	Frontend string `yaml:"frontend"`
	// FrontendKeywords route a worker to the frontend reviewer.
	FrontendKeywords []string `yaml:"frontend_keywords"`
	// DomainExtras maps a worker to an additional domain reviewer.
	DomainExtras map[string]string `yaml:"domain_extras"`
}

// DefaultReviewRules returns the built-in reviewer selection rules.
func DefaultReviewRules() *ReviewRules {
	extras := make(map[string]string, len(defaultDomainExtras))
	for k, v := range defaultDomainExtras {
		extras[k] = v
	}
	return &ReviewRules{
		General:          defaultReviewer,
		Frontend:         frontendReviewer,
		FrontendKeywords: append([]string(nil), defaultFrontendKeywords...),
		DomainExtras:     extras,
	}
}

// LoadReviewRules reads reviewer rules from a YAML file, filling gaps with
// defaults. A missing file returns the defaults.
func LoadReviewRules(path string) (*ReviewRules, error) {
	rules := DefaultReviewRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("read review rules: %w", err)
	}

	var loaded ReviewRules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse review rules: %w", err)
	}

	if loaded.General != "" {
		rules.General = loaded.General
	}
	if loaded.Frontend != "" {
		rules.Frontend = loaded.Frontend
	}
	if len(loaded.FrontendKeywords) > 0 {
		rules.FrontendKeywords = loaded.FrontendKeywords
	}
	for k, v := range loaded.DomainExtras {
		rules.DomainExtras[k] = v
	}
	return rules, nil
}

// ReviewersFor returns the reviewer workers for the given worker, in order.
// Reviewers reviewing their own kind would loop forever, so reviewer workers
// get an empty set.
func (r *ReviewRules) ReviewersFor(workerName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if workerName == r.General || workerName == r.Frontend {
		return nil
	}

	primary := r.General
	for _, kw := range r.FrontendKeywords {
		if strings.Contains(workerName, kw) {
			primary = r.Frontend
			break
		}
	}

	reviewers := []string{primary}
	if extra, ok := r.DomainExtras[workerName]; ok && extra != primary && extra != workerName {
		reviewers = append(reviewers, extra)
	}
	return reviewers
}

package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// taskLineRe matches numbered plan lines of the form:
//
//	1. backend-architect: Design API schema
//	3. test-engineer: Write integration tests (depends on: 1, 2)
//
// The dependency references are positional: "depends on: 2" refers to the
// second line of the plan.
var taskLineRe = regexp.MustCompile(`^\s*(\d+)\.\s*([\w-]+):\s*(.+?)(?:\s*\(depends on:\s*([\d,\s]+)\))?\s*$`)

// Parser turns plan descriptors into validated, executable plans.
// Tasks without an explicit ID get a synthetic "task-N" id from their
// position in the plan.
type Parser struct {
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewParser creates a plan parser.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse builds a plan from a structured descriptor. The returned plan has a
// validated dependency graph; any structural problem is reported as a
// *models.GraphError before any task runs.
func (p *Parser) Parse(desc models.PlanDescriptor) (*models.Plan, *TaskGraph, error) {
	if len(desc.Tasks) == 0 {
		return nil, nil, &models.GraphError{Kind: models.GraphEmptyPlan}
	}

	now := p.now()
	plan := &models.Plan{
		ID:        newPlanID(),
		Request:   desc.Request,
		Status:    models.PlanStatusActive,
		CreatedAt: now,
	}

	for i, d := range desc.Tasks {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		task := &models.Task{
			ID:          id,
			PlanID:      plan.ID,
			Seq:         i + 1,
			Title:       strings.TrimSpace(d.Title),
			Description: d.Description,
			Worker:      d.Worker,
			Status:      models.TaskStatusPending,
			DependsOn:   d.DependsOn,
			CreatedAt:   now,
		}
		plan.Tasks = append(plan.Tasks, task)
	}

	g := New()
	if err := g.Build(plan.Tasks); err != nil {
		return nil, nil, err
	}
	return plan, g, nil
}

// ParseYAML builds a plan from a YAML plan descriptor document.
func (p *Parser) ParseYAML(data []byte) (*models.Plan, *TaskGraph, error) {
	var desc models.PlanDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, nil, fmt.Errorf("decode plan descriptor: %w", err)
	}
	return p.Parse(desc)
}

// ParseTaskList builds a plan from numbered plan lines. Each line has the
// form "N. worker: title" with an optional "(depends on: ...)" suffix whose
// references are line positions. Lines that do not match the format are
// ignored.
func (p *Parser) ParseTaskList(request, text string) (*models.Plan, *TaskGraph, error) {
	type line struct {
		pos    int
		worker string
		title  string
		deps   []int
	}

	var lines []line
	for _, raw := range strings.Split(text, "\n") {
		m := taskLineRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		pos, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		l := line{pos: pos, worker: m[2], title: strings.TrimSpace(m[3])}
		if m[4] != "" {
			for _, ref := range strings.Split(m[4], ",") {
				n, err := strconv.Atoi(strings.TrimSpace(ref))
				if err != nil {
					return nil, nil, fmt.Errorf("bad dependency reference %q on line %d", ref, pos)
				}
				l.deps = append(l.deps, n)
			}
		}
		lines = append(lines, l)
	}

	if len(lines) == 0 {
		return nil, nil, &models.GraphError{Kind: models.GraphEmptyPlan}
	}

	// Map line positions to synthetic ids, then resolve dependency refs.
	idByPos := make(map[int]string, len(lines))
	for i, l := range lines {
		idByPos[l.pos] = fmt.Sprintf("task-%d", i+1)
	}

	desc := models.PlanDescriptor{Request: request}
	for _, l := range lines {
		d := models.Descriptor{
			ID:     idByPos[l.pos],
			Title:  l.title,
			Worker: l.worker,
		}
		for _, ref := range l.deps {
			depID, ok := idByPos[ref]
			if !ok {
				return nil, nil, &models.GraphError{
					Kind:       models.GraphUnknownDependency,
					TaskID:     idByPos[l.pos],
					Dependency: fmt.Sprintf("line %d", ref),
				}
			}
			d.DependsOn = append(d.DependsOn, depID)
		}
		desc.Tasks = append(desc.Tasks, d)
	}

	return p.Parse(desc)
}

// newPlanID generates a short unique plan identifier.
func newPlanID() string {
	return "plan-" + uuid.New().String()[:8]
}

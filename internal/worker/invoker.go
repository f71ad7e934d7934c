package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/pkg/models"
)

// APIInvoker executes tasks through the Anthropic Messages API. One invoker
// represents one named worker with a role-specific system prompt.
type APIInvoker struct {
	name   string
	role   string
	client *Client
}

// NewAPIInvoker creates an API-backed worker. The role text becomes the
// system prompt for every invocation.
func NewAPIInvoker(name, role string, client *Client) *APIInvoker {
	return &APIInvoker{name: name, role: role, client: client}
}

// Name returns the worker reference this invoker serves.
func (w *APIInvoker) Name() string {
	return w.name
}

const resultFooter = `

When you are done, end your response with a single JSON object on its own lines:
{"artifacts": ["..."], "kb_updates": ["..."]}
listing the outputs you produced and the knowledge base keys you wrote.

If you cannot complete the task, instead end with one line:
FAILURE: fixable: <what additional information you need>
or
FAILURE: fundamental: <why the task cannot be done as specified>`

// Invoke runs the task and parses the worker's structured trailer.
func (w *APIInvoker) Invoke(ctx context.Context, task *models.Task) (*models.WorkerResult, error) {
	start := time.Now()

	output, in, out, err := w.client.complete(ctx, w.role, task.Instructions()+resultFooter)
	if err != nil {
		return nil, &models.WorkerError{TaskID: task.ID, Worker: w.name, Err: err}
	}

	if kind, reason, failed := parseFailureSignal(output); failed {
		return nil, &models.WorkerError{
			TaskID: task.ID,
			Worker: w.name,
			Reason: reason,
			Signal: kind,
		}
	}

	result := &models.WorkerResult{
		TaskID:       task.ID,
		Worker:       w.name,
		Output:       output,
		InputTokens:  in,
		OutputTokens: out,
		Duration:     time.Since(start),
	}
	result.Artifacts, result.KBUpdates = parseResultTrailer(output)
	return result, nil
}

// Clarify asks the worker a question about work it already completed.
func (w *APIInvoker) Clarify(ctx context.Context, task *models.Task, question string) (string, error) {
	prompt := fmt.Sprintf(`You previously completed this task:

%s

A downstream task failed and needs clarification from you. Answer the
question concisely and concretely.

QUESTION: %s`, task.Instructions(), question)

	answer, _, _, err := w.client.complete(ctx, w.role, prompt)
	if err != nil {
		return "", fmt.Errorf("clarification from %s: %w", w.name, err)
	}
	return strings.TrimSpace(answer), nil
}

// Review performs a peer review of another worker's result.
// The reviewer must answer APPROVED or NOT APPROVED on the first line and
// prefix each concern with "CONCERN:".
func (w *APIInvoker) Review(ctx context.Context, task *models.Task, result *models.WorkerResult) (bool, []string, error) {
	prompt := fmt.Sprintf(`You are reviewing completed work before it is accepted.

TASK:
%s

WORKER OUTPUT:
%s

Your response MUST include:
1. A clear APPROVED or NOT APPROVED verdict on the first line
2. A list of concerns, if any (prefix each with "CONCERN:")

Focus on correctness, missing pieces, and inconsistencies between the task
and the output.`, task.Instructions(), result.Output)

	raw, _, _, err := w.client.complete(ctx, w.role, prompt)
	if err != nil {
		return false, nil, fmt.Errorf("review by %s: %w", w.name, err)
	}

	approved, concerns := ParseReview(raw)
	return approved, concerns, nil
}

// ParseReview extracts the verdict and concerns from a review response.
func ParseReview(raw string) (approved bool, concerns []string) {
	lines := strings.Split(raw, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "APPROVED") && !strings.Contains(upper, "NOT APPROVED") {
			approved = true
		}
		break
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), "CONCERN:") {
			concern := strings.TrimSpace(line[len("CONCERN:"):])
			if concern != "" {
				concerns = append(concerns, concern)
			}
		}
	}
	return approved, concerns
}

// parseFailureSignal looks for a "FAILURE: <kind>: <reason>" line.
func parseFailureSignal(output string) (models.FailureKind, string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "FAILURE:") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "FAILURE:"))
		kind, reason, found := strings.Cut(rest, ":")
		if !found {
			return models.FailureUnknown, rest, true
		}
		switch strings.TrimSpace(strings.ToLower(kind)) {
		case "fixable":
			return models.FailureFixable, strings.TrimSpace(reason), true
		case "fundamental":
			return models.FailureFundamental, strings.TrimSpace(reason), true
		default:
			return models.FailureUnknown, rest, true
		}
	}
	return models.FailureUnknown, "", false
}

// parseResultTrailer extracts the trailing JSON object declaring artifacts
// and KB updates. A missing or malformed trailer is not an error; the
// checkpoint's automatic stage decides whether the result is acceptable.
func parseResultTrailer(output string) (artifacts, kbUpdates []string) {
	jsonStart := strings.LastIndex(output, "{")
	jsonEnd := strings.LastIndex(output, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, nil
	}

	var trailer struct {
		Artifacts []string `json:"artifacts"`
		KBUpdates []string `json:"kb_updates"`
	}
	if err := json.Unmarshal([]byte(output[jsonStart:jsonEnd+1]), &trailer); err != nil {
		return nil, nil
	}
	return trailer.Artifacts, trailer.KBUpdates
}

// Package kb provides the knowledge base seam used by checkpoint validation.
// Workers declare the KB entries they wrote; the checkpoint's sync stage
// verifies each declared entry actually exists before approving a task.
package kb

import (
	"io"
	"time"
)

// RecordKind classifies a knowledge base entry.
type RecordKind string

const (
	// KindDecision is an architectural or design decision.
	KindDecision RecordKind = "decision"
	// KindPattern is a reusable pattern document.
	KindPattern RecordKind = "pattern"
	// KindClarification is a clarification answer captured during recovery.
	KindClarification RecordKind = "clarification"
)

// Record is a single knowledge base entry.
type Record struct {
	// Key identifies the entry (e.g. "patterns/auth.md", "decisions/api-versioning").
	Key string `json:"key"`
	// Kind classifies the entry.
	Kind RecordKind `json:"kind"`
	// Worker is the worker that wrote the entry.
	Worker string `json:"worker"`
	// Summary is the decision or pattern in one line.
	Summary string `json:"summary"`
	// Rationale explains the reasoning.
	Rationale string `json:"rationale,omitempty"`
	// Affects lists components touched by this entry.
	Affects []string `json:"affects,omitempty"`
	// TaskID is the task the entry was recorded under, if any.
	TaskID string `json:"task_id,omitempty"`
	// CreatedAt is when the entry was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the knowledge base interface. Entries are append-only: the same
// key may accumulate multiple records over time, newest last.
type Store interface {
	io.Closer
	// Append adds a record. The CreatedAt field is set by the store if zero.
	Append(r *Record) error
	// Exists reports whether any record with the given key exists.
	Exists(key string) (bool, error)
	// Get returns all records for a key, oldest first.
	Get(key string) ([]Record, error)
	// ListByTask returns all records appended under a task, oldest first.
	ListByTask(taskID string) ([]Record, error)
}

// Compile-time verification that both implementations satisfy Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

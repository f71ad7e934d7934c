package kb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a knowledge base backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultPath returns the project-local knowledge base path.
func DefaultPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".devteam", "kb.db")
}

// OpenSQLite opens (and initializes) a SQLite-backed knowledge base.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create kb directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open kb database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			kind TEXT NOT NULL,
			worker TEXT NOT NULL,
			summary TEXT NOT NULL,
			rationale TEXT,
			affects TEXT,
			task_id TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_key ON records(key);
		CREATE INDEX IF NOT EXISTS idx_records_task_id ON records(task_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append adds a record to the knowledge base.
func (s *SQLiteStore) Append(r *Record) error {
	if r.Key == "" {
		return fmt.Errorf("kb record requires a key")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	affects, _ := json.Marshal(r.Affects)
	_, err := s.db.Exec(`
		INSERT INTO records (key, kind, worker, summary, rationale, affects, task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Key, string(r.Kind), r.Worker, r.Summary, r.Rationale, string(affects), r.TaskID,
		r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append kb record: %w", err)
	}
	return nil
}

// Exists reports whether any record with the given key exists.
func (s *SQLiteStore) Exists(key string) (bool, error) {
	var n int
	row := s.db.QueryRow("SELECT COUNT(1) FROM records WHERE key = ?", key)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check kb key: %w", err)
	}
	return n > 0, nil
}

// Get returns all records for a key, oldest first.
func (s *SQLiteStore) Get(key string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT key, kind, worker, summary, rationale, affects, task_id, created_at
		FROM records WHERE key = ? ORDER BY seq
	`, key)
	if err != nil {
		return nil, fmt.Errorf("get kb records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByTask returns all records appended under a task, oldest first.
func (s *SQLiteStore) ListByTask(taskID string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT key, kind, worker, summary, rationale, affects, task_id, created_at
		FROM records WHERE task_id = ? ORDER BY seq
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list kb records by task: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var affects, rationale, taskID sql.NullString
		var createdAt string
		if err := rows.Scan(&r.Key, &r.Kind, &r.Worker, &r.Summary, &rationale, &affects, &taskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan kb record: %w", err)
		}
		if rationale.Valid {
			r.Rationale = rationale.String
		}
		if affects.Valid {
			json.Unmarshal([]byte(affects.String), &r.Affects)
		}
		if taskID.Valid {
			r.TaskID = taskID.String
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

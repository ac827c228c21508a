package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/shopcheck/internal/flow"
)

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	FlowName   string
	URL        string
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
	Successful bool
	Passed     int
	Failed     int
	ReportPath string
}

// StepRecord is one row of the steps table.
type StepRecord struct {
	Index      int
	Name       string
	Status     string
	Path       string
	Attempts   int
	ErrKind    string
	Error      string
	Screenshot string
	Extracted  string
	Duration   time.Duration
}

type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			flow_name TEXT,
			url TEXT,
			started_at TEXT,
			finished_at TEXT,
			aborted INTEGER,
			successful INTEGER,
			passed INTEGER,
			failed INTEGER,
			report_path TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT REFERENCES runs(id),
			step_index INTEGER,
			name TEXT,
			status TEXT,
			path TEXT,
			attempts INTEGER,
			err_kind TEXT,
			error TEXT,
			screenshot TEXT,
			extracted TEXT,
			duration_ms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, step_index);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

// SaveRun stores a finished run and its step results in one transaction.
func (h *HistoryStore) SaveRun(r *flow.RunReport, reportPath string) error {
	tx, err := h.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	counts := r.Counts()
	_, err = tx.Exec(`INSERT INTO runs (id, flow_name, url, started_at, finished_at, aborted, successful, passed, failed, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FlowName, r.URL,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		r.Aborted, r.Successful(),
		counts[flow.StatusPassed], counts[flow.StatusFailed]+counts[flow.StatusNoMatch],
		reportPath)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range r.Results {
		_, err = tx.Exec(`INSERT INTO steps (run_id, step_index, name, status, path, attempts, err_kind, error, screenshot, extracted, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, res.Index, res.Name, string(res.Status), string(res.Path), res.Attempts,
			string(res.ErrKind), res.Error, res.Screenshot, res.Extracted, res.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", res.Index, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first.
func (h *HistoryStore) ListRuns(limit int) ([]RunSummary, error) {
	query := `SELECT id, flow_name, url, started_at, finished_at, aborted, successful, passed, failed, report_path
		FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := h.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		if err := rows.Scan(&s.ID, &s.FlowName, &s.URL, &started, &finished, &s.Aborted, &s.Successful, &s.Passed, &s.Failed, &s.ReportPath); err != nil {
			return nil, err
		}
		s.StartedAt, _ = time.Parse(timeLayout, started)
		s.FinishedAt, _ = time.Parse(timeLayout, finished)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetSteps returns the step records of a run in flow order.
func (h *HistoryStore) GetSteps(runID string) ([]StepRecord, error) {
	query := `SELECT step_index, name, status, path, attempts, err_kind, error, screenshot, extracted, duration_ms
		FROM steps WHERE run_id = ? ORDER BY step_index`
	rows, err := h.DB.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var s StepRecord
		var ms int64
		if err := rows.Scan(&s.Index, &s.Name, &s.Status, &s.Path, &s.Attempts, &s.ErrKind, &s.Error, &s.Screenshot, &s.Extracted, &ms); err != nil {
			return nil, err
		}
		s.Duration = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

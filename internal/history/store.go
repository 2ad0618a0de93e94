// Package history persists run results to a SQLite file so response times
// and failures can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gemplay-qa/gemcheck/internal/recorder"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one invocation of gemcheck.
type Run struct {
	ID        string
	Command   string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and
// applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			base_url TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			suite TEXT NOT NULL,
			name TEXT NOT NULL,
			passed INTEGER NOT NULL,
			details TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_records_name ON records(suite, name)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("history migration failed: %w", err)
		}
	}
	return nil
}

// SaveRun stores run and its records in one transaction. An empty run.ID
// is filled with a new UUID.
func (s *Store) SaveRun(ctx context.Context, run *Run, records []recorder.Record) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, command, base_url, started_at, duration_ms, total, passed, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.BaseURL, formatTime(run.StartedAt), run.Duration.Milliseconds(),
		run.Total, run.Passed, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, seq, suite, name, passed, details, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, rec.Suite, rec.Name, boolToInt(rec.Passed), rec.Details,
			rec.Duration.Milliseconds(), formatTime(rec.At),
		); err != nil {
			return fmt.Errorf("inserting record %q: %w", rec.Name, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, base_url, started_at, duration_ms, total, passed, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, base_url, started_at, duration_ms, total, passed, failed
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Records returns the records of a run in the order they were recorded.
func (s *Store) Records(ctx context.Context, runID string) ([]recorder.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suite, name, passed, details, duration_ms, recorded_at
		 FROM records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// TestHistory returns the latest outcomes of one named check across runs,
// newest first.
func (s *Store) TestHistory(ctx context.Context, suite, name string, limit int) ([]recorder.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT suite, name, passed, details, duration_ms, recorded_at
		 FROM records WHERE suite = ? AND name = ?
		 ORDER BY recorded_at DESC LIMIT ?`, suite, name, limit)
	if err != nil {
		return nil, fmt.Errorf("querying test history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		durationMs int64
	)
	if err := sc.Scan(&run.ID, &run.Command, &run.BaseURL, &startedAt, &durationMs,
		&run.Total, &run.Passed, &run.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

func scanRecords(rows *sql.Rows) ([]recorder.Record, error) {
	var out []recorder.Record
	for rows.Next() {
		var (
			rec        recorder.Record
			passed     int
			details    sql.NullString
			durationMs int64
			at         string
		)
		if err := rows.Scan(&rec.Suite, &rec.Name, &passed, &details, &durationMs, &at); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Passed = passed != 0
		rec.Details = details.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.At = parseTime(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so that string ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

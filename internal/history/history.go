// Package history keeps a log of aggregation runs in a SQLite database, one row per run and
// one row per extractor call, so that a venue that silently stopped returning events can be
// spotted over time.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/poitiers-events/internal/aggregator"
	"github.com/pfrederiksen/poitiers-events/internal/event"
)

//go:embed schema.sql
var schema string

// Store records runs. It is safe for sequential use by one process.
type Store struct {
	db *sql.DB
}

// Run is one recorded aggregation.
type Run struct {
	ID          string      `json:"id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Collected   int         `json:"collected"`
	Written     int         `json:"written"`
	Output      string      `json:"output"`
	Sources     []SourceRun `json:"sources"`
}

// SourceRun is one extractor call of a run.
type SourceRun struct {
	Source   string        `json:"source"`
	Events   int           `json:"events"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Open opens (and creates if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() // nolint:errcheck
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores result as written to output and returns the new run id.
func (s *Store) Record(ctx context.Context, result *aggregator.Result, output string) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	written := 0
	generatedAt := result.FinishedAt.UTC().Format(event.GeneratedAtLayout)
	if result.Document != nil {
		written = len(result.Document.Events)
		generatedAt = result.Document.GeneratedAt
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, generated_at, collected, written, output) VALUES (?, ?, ?, ?, ?)`,
		id, generatedAt, result.Collected, written, output,
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, rep := range result.Reports {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_runs (run_id, position, source, events, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, rep.Source, rep.Events, rep.Error, rep.Duration.Milliseconds(),
		); err != nil {
			return "", fmt.Errorf("inserting source run %s: %w", rep.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, most recent first, with their source rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generated_at, collected, written, output FROM runs ORDER BY generated_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run         Run
			generatedAt string
		)
		if err := rows.Scan(&run.ID, &generatedAt, &run.Collected, &run.Written, &run.Output); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.GeneratedAt, err = time.Parse(event.GeneratedAtLayout, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing generated_at of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	rows.Close() // nolint:errcheck

	for i := range runs {
		sources, err := s.sources(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Sources = sources
	}
	return runs, nil
}

func (s *Store) sources(ctx context.Context, runID string) ([]SourceRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, events, error, duration_ms FROM source_runs WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying source runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	sources := make([]SourceRun, 0)
	for rows.Next() {
		var (
			src SourceRun
			ms  int64
		)
		if err := rows.Scan(&src.Source, &src.Events, &src.Error, &ms); err != nil {
			return nil, fmt.Errorf("scanning source run: %w", err)
		}
		src.Duration = time.Duration(ms) * time.Millisecond
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Failed returns the sources of the run that failed.
func (r Run) Failed() []string {
	failed := make([]string, 0)
	for _, src := range r.Sources {
		if src.Error != "" {
			failed = append(failed, src.Source)
		}
	}
	return failed
}

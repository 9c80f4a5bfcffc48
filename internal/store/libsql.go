package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// LibSQLIndex implements RunIndex using libSQL (embedded SQLite fork).
type LibSQLIndex struct {
	db *sql.DB
}

// NewLibSQLIndex opens a libSQL database at the given path. The path
// should be a file URI, e.g. "file:/path/to/flowt.db".
func NewLibSQLIndex(dbPath string) (*LibSQLIndex, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some return rows, so QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLIndex{db: db}, nil
}

// Close closes the database.
func (s *LibSQLIndex) Close() error { return s.db.Close() }

// Migrate applies pending schema migrations.
func (s *LibSQLIndex) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// IndexRun upserts the record's summary row.
func (s *LibSQLIndex) IndexRun(ctx context.Context, record *schema.RunRecord) error {
	if record == nil {
		return schema.NewError(schema.ErrCodeValidation, "record is nil")
	}

	var errText sql.NullString
	if record.Error != nil {
		errText = sql.NullString{String: *record.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, workflow, status, started_at, ended_at, error, step_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   status=excluded.status, ended_at=excluded.ended_at,
		   error=excluded.error, step_count=excluded.step_count`,
		record.RunID, record.Workflow, record.Status,
		record.StartedAt, record.EndedAt, errText, len(record.Steps),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "index run %s: %s", record.RunID, err.Error()).WithCause(err)
	}
	return nil
}

// ListRuns returns runs newest-first, optionally filtered by workflow.
func (s *LibSQLIndex) ListRuns(ctx context.Context, workflow string, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, workflow, status, started_at, ended_at, error, step_count
	          FROM runs`
	args := []any{}
	if workflow != "" {
		query += ` WHERE workflow = ?`
		args = append(args, workflow)
	}
	query += ` ORDER BY started_at DESC, run_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list runs: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list runs: %s", err.Error()).WithCause(err)
	}
	return summaries, nil
}

// LatestRun returns the most recent run of the workflow.
func (s *LibSQLIndex) LatestRun(ctx context.Context, workflow string) (*RunSummary, error) {
	summaries, err := s.ListRuns(ctx, workflow, 1)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no runs for workflow %q", workflow)
	}
	return &summaries[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunSummary, error) {
	var summary RunSummary
	var endedAt, errText sql.NullString
	if err := row.Scan(&summary.RunID, &summary.Workflow, &summary.Status,
		&summary.StartedAt, &endedAt, &errText, &summary.StepCount); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "scan run: %s", err.Error()).WithCause(err)
	}
	summary.EndedAt = endedAt.String
	if errText.Valid {
		summary.Error = &errText.String
	}
	return &summary, nil
}

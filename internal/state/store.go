package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mmr-tortoise/paddock/internal/model"
	"github.com/mmr-tortoise/paddock/internal/profile"
)

// schemaVersion is stamped into PRAGMA user_version so future releases
// can migrate old databases.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	job              TEXT NOT NULL,
	profile          TEXT NOT NULL DEFAULT '',
	device           TEXT NOT NULL DEFAULT '',
	pid              INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMP NOT NULL,
	finished_at      TIMESTAMP,
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	exit_code        INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	output_tail      TEXT NOT NULL DEFAULT '',
	output_truncated INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_job ON runs(job);

CREATE TABLE IF NOT EXISTS update_checks (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	latest_tag TEXT NOT NULL,
	checked_at TIMESTAMP NOT NULL
);
`

// Store is the SQLite-backed launch history. Safe for concurrent use.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// DefaultPath returns the standard state database location,
// <user-config>/paddock/state.db.
func DefaultPath() (string, error) {
	dir, err := profile.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens (creating if needed) the state database at path and ensures
// the schema is in place.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	// WAL keeps a concurrent history query from blocking the run
	// recording; busy_timeout covers the brief overlap windows.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to stamp schema version: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RecordStart inserts a new run in running state.
func (s *Store) RecordStart(ctx context.Context, rec model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, job, profile, device, pid, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Job.String(), rec.Profile, rec.Device, rec.PID,
		rec.StartedAt.UTC(), model.StatusRunning.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordFinish completes a run started with RecordStart.
func (s *Store) RecordFinish(ctx context.Context, id string, rec model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, duration_ms = ?, exit_code = ?, status = ?,
		    output_tail = ?, output_truncated = ?
		WHERE id = ?`,
		rec.FinishedAt.UTC(), rec.Duration.Milliseconds(), rec.ExitCode,
		rec.Status.String(), rec.OutputTail, boolToInt(rec.OutputTruncated), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found in state database", id)
	}
	return nil
}

// ListFilter narrows ListRuns output. Zero values mean "no filter"; a
// zero Limit applies a default of 20.
type ListFilter struct {
	Job    model.Job
	Status model.RunStatus
	Limit  int
}

// ListRuns returns run records, newest first.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var conds []string
	var args []any
	if filter.Job != "" {
		conds = append(conds, "job = ?")
		args = append(args, filter.Job.String())
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status.String())
	}

	query := `
		SELECT id, job, profile, device, pid, started_at, finished_at,
		       duration_ms, exit_code, status, output_tail, output_truncated
		FROM runs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var job, status string
		var finishedAt sql.NullTime
		var durationMS int64
		var truncated int
		if err := rows.Scan(&rec.ID, &job, &rec.Profile, &rec.Device,
			&rec.PID, &rec.StartedAt, &finishedAt, &durationMS,
			&rec.ExitCode, &status, &rec.OutputTail, &truncated); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Job = model.Job(job)
		rec.Status = model.RunStatus(status)
		if finishedAt.Valid {
			rec.FinishedAt = finishedAt.Time
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.OutputTruncated = truncated != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return records, nil
}

// UpdateCheck is the single-row record of the most recent release check.
type UpdateCheck struct {
	LatestTag string
	CheckedAt time.Time
}

// ErrNoUpdateCheck is returned by LastUpdateCheck when no check has been
// saved yet.
var ErrNoUpdateCheck = errors.New("no update check recorded")

// LastUpdateCheck returns the most recently saved release check.
func (s *Store) LastUpdateCheck(ctx context.Context) (UpdateCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var check UpdateCheck
	err := s.db.QueryRowContext(ctx,
		`SELECT latest_tag, checked_at FROM update_checks WHERE id = 1`,
	).Scan(&check.LatestTag, &check.CheckedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateCheck{}, ErrNoUpdateCheck
	}
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("failed to read update check: %w", err)
	}
	return check, nil
}

// SaveUpdateCheck upserts the single bookkeeping row.
func (s *Store) SaveUpdateCheck(ctx context.Context, tag string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_checks (id, latest_tag, checked_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET latest_tag = excluded.latest_tag,
		                               checked_at = excluded.checked_at`,
		tag, checkedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save update check: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

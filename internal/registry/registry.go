// Package registry tracks submitted cluster jobs in a SQLite database so
// status and watch commands can find them again across invocations.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/emalign/emsolve/internal/pbs"
)

// ErrNotFound is returned when a job is not in the registry.
var ErrNotFound = errors.New("job not found in registry")

// Job is one submitted cluster job.
type Job struct {
	JobID       string
	RunID       string
	Name        string
	Queue       string
	ScriptPath  string
	LogPath     string
	InputPath   string
	OutputPath  string
	State       pbs.State
	ExitStatus  *int
	SubmittedAt time.Time
	UpdatedAt   time.Time
	FinishedAt  *time.Time
}

// Registry stores jobs in SQLite.
type Registry struct {
	db     *sql.DB
	dbPath string
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, dbPath string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory; %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database; %w", err)
	}

	// Serialize access to avoid SQLite write contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout; %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode; %w", err)
	}

	r := &Registry{db: db, dbPath: dbPath}
	if err := r.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Registry) Path() string {
	return r.dbPath
}

func (r *Registry) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			job_id       TEXT PRIMARY KEY,
			run_id       TEXT NOT NULL,
			name         TEXT NOT NULL,
			queue        TEXT NOT NULL,
			script_path  TEXT NOT NULL,
			log_path     TEXT NOT NULL,
			input_path   TEXT NOT NULL,
			output_path  TEXT NOT NULL,
			state        TEXT NOT NULL,
			exit_status  INTEGER,
			submitted_at TIMESTAMP NOT NULL,
			updated_at   TIMESTAMP NOT NULL,
			finished_at  TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs(run_id);
		CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	`)
	if err != nil {
		return fmt.Errorf("failed to create registry schema; %w", err)
	}
	return nil
}

// Save inserts a freshly submitted job.
func (r *Registry) Save(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, run_id, name, queue, script_path, log_path,
		                  input_path, output_path, state, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.JobID, job.RunID, job.Name, job.Queue, job.ScriptPath, job.LogPath,
		job.InputPath, job.OutputPath, string(job.State), now, now)
	if err != nil {
		return fmt.Errorf("failed to save job %s; %w", job.JobID, err)
	}
	return nil
}

// UpdateState records the latest observed state; terminal states also set
// the finish time and exit status.
func (r *Registry) UpdateState(ctx context.Context, jobID string, state pbs.State, exitStatus *int) error {
	now := time.Now().UTC()

	var res sql.Result
	var err error
	if state.Terminal() {
		res, err = r.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, exit_status = ?, updated_at = ?, finished_at = ?
			WHERE job_id = ?
		`, string(state), exitStatus, now, now, jobID)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE jobs SET state = ?, updated_at = ? WHERE job_id = ?
		`, string(state), now, jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to update job %s; %w", jobID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s; %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", jobID, ErrNotFound)
	}
	return nil
}

// Get returns one job by ID.
func (r *Registry) Get(ctx context.Context, jobID string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT job_id, run_id, name, queue, script_path, log_path, input_path,
		       output_path, state, exit_status, submitted_at, updated_at, finished_at
		FROM jobs WHERE job_id = ?
	`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s; %w", jobID, err)
	}
	return job, nil
}

// Latest returns the most recently submitted job for a run.
func (r *Registry) Latest(ctx context.Context, runID string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT job_id, run_id, name, queue, script_path, log_path, input_path,
		       output_path, state, exit_status, submitted_at, updated_at, finished_at
		FROM jobs WHERE run_id = ?
		ORDER BY submitted_at DESC LIMIT 1
	`, runID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job for run %s; %w", runID, err)
	}
	return job, nil
}

// Resolve looks a job up by job ID, falling back to the newest job submitted
// for the run with that ID. Commands accept either identifier.
func (r *Registry) Resolve(ctx context.Context, id string) (*Job, error) {
	job, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return r.Latest(ctx, id)
	}
	return job, err
}

// List returns all jobs, newest first. If activeOnly is set, terminal jobs
// are skipped.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]*Job, error) {
	query := `
		SELECT job_id, run_id, name, queue, script_path, log_path, input_path,
		       output_path, state, exit_status, submitted_at, updated_at, finished_at
		FROM jobs`
	if activeOnly {
		query += ` WHERE state NOT IN ('completed')`
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs; %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row; %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows; %w", err)
	}
	return jobs, nil
}

// Purge removes terminal jobs finished before the cutoff. Returns the
// number of rows removed.
func (r *Registry) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs; %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs; %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var state string
	var exitStatus sql.NullInt64
	var finishedAt sql.NullTime

	err := row.Scan(
		&job.JobID, &job.RunID, &job.Name, &job.Queue, &job.ScriptPath,
		&job.LogPath, &job.InputPath, &job.OutputPath, &state, &exitStatus,
		&job.SubmittedAt, &job.UpdatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.State = pbs.State(state)
	if exitStatus.Valid {
		n := int(exitStatus.Int64)
		job.ExitStatus = &n
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

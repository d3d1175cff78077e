package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// PostgresStore persists jobs in a tool_jobs table. Result, error, and
// metadata payloads are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS tool_jobs (
	job_id     TEXT PRIMARY KEY,
	tool_name  TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	task_id    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	metadata   JSONB,
	result     JSONB,
	error      JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_jobs_status_idx ON tool_jobs (status, updated_at);
CREATE INDEX IF NOT EXISTS tool_jobs_tool_idx ON tool_jobs (tool_name);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate tool_jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job *Job) error {
	metadata, result, jobErr, err := marshalPayloads(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tool_jobs (job_id, tool_name, request_id, task_id, status, metadata, result, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.JobID, job.ToolName, job.RequestID, job.TaskID, string(job.Status),
		metadata, result, jobErr, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, job *Job) error {
	metadata, result, jobErr, err := marshalPayloads(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE tool_jobs SET status = $2, metadata = $3, result = $4, error = $5, updated_at = $6
WHERE job_id = $1`,
		job.JobID, string(job.Status), metadata, result, jobErr, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.JobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrJobNotFound{JobID: job.JobID}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT job_id, tool_name, request_id, task_id, status, metadata, result, error, created_at, updated_at
FROM tool_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, &ErrJobNotFound{JobID: jobID}
	}
	return job, err
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Job, error) {
	query := `
SELECT job_id, tool_name, request_id, task_id, status, metadata, result, error, created_at, updated_at
FROM tool_jobs WHERE 1=1`
	var args []any
	if filter.ToolName != "" {
		args = append(args, filter.ToolName)
		query += fmt.Sprintf(" AND tool_name = $%d", len(args))
	}
	if filter.RequestID != "" {
		args = append(args, filter.RequestID)
		query += fmt.Sprintf(" AND request_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at, job_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM tool_jobs
WHERE status IN ('completed', 'failed', 'canceled') AND updated_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func marshalPayloads(job *Job) (metadata, result, jobErr []byte, err error) {
	if job.Metadata != nil {
		if metadata, err = json.Marshal(job.Metadata); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	if job.Error != nil {
		if jobErr, err = json.Marshal(job.Error); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal error: %w", err)
		}
	}
	return metadata, result, jobErr, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job      Job
		status   string
		metadata []byte
		result   []byte
		jobErr   []byte
	)
	err := row.Scan(&job.JobID, &job.ToolName, &job.RequestID, &job.TaskID,
		&status, &metadata, &result, &jobErr, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", job.JobID, err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result for %s: %w", job.JobID, err)
		}
	}
	if len(jobErr) > 0 {
		var te models.ToolError
		if err := json.Unmarshal(jobErr, &te); err != nil {
			return nil, fmt.Errorf("unmarshal error for %s: %w", job.JobID, err)
		}
		job.Error = &te
	}
	return &job, nil
}

package runner

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ridoystarlord/casemigrate/pipeline"
)

// DB is the part of a pgx pool or connection the tracking tables need.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRecord is one finished step of a migration run
type RunRecord struct {
	ID            int
	RunID         string
	Command       string
	Stage         string
	Domain        string
	StepIndex     int
	StepName      string
	ExecutedAt    time.Time
	ExecutionTime time.Duration
	ExecutedBy    string
	Status        string
	ErrorMessage  string
	Rows          int64
	Resume        string
}

// RunLog represents a migration log entry
type RunLog struct {
	ID        int
	Timestamp time.Time
	Level     string
	Message   string
	User      string
	Details   string
	RunID     string
	StepName  string
}

// Recorder writes every step of one run to the tracking tables.
type Recorder struct {
	DB      DB
	RunID   string
	Command string
	User    string
}

func NewRecorder(db DB, command string) *Recorder {
	return &Recorder{DB: db, RunID: uuid.NewString(), Command: command, User: getCurrentUser()}
}

// EnsureTables creates migration_runs and migration_logs when missing.
func EnsureTables(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS migration_runs (
		id SERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		command TEXT NOT NULL,
		stage TEXT NOT NULL,
		domain TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		step_name TEXT NOT NULL,
		executed_at TIMESTAMP DEFAULT now(),
		execution_time INTERVAL,
		executed_by TEXT,
		status TEXT DEFAULT 'success',
		error_message TEXT,
		row_count BIGINT DEFAULT 0,
		resume TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration_runs table: %w", err)
	}

	_, err = db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS migration_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP DEFAULT now(),
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_name TEXT,
		details TEXT,
		run_id TEXT,
		step_name TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration_logs table: %w", err)
	}
	return nil
}

func getCurrentUser() string {
	currentUser, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return currentUser.Username
}

// StepStatus is "failed" for steps that returned an error.
func StepStatus(step pipeline.Step) string {
	if step.Err != nil {
		return "failed"
	}
	return "success"
}

// StepLog is the log level, message and details recorded for a step.
func StepLog(step pipeline.Step) (level, message, details string) {
	label := fmt.Sprintf("%s %s.%d %s", step.Stage, step.Domain, step.Index, step.Name)
	if step.Err != nil {
		return "ERROR", "Step failed: " + label, fmt.Sprintf("%v (resume with --start %s)", step.Err, step.Resume())
	}
	return "SUCCESS", "Step completed: " + label, fmt.Sprintf("%d rows in %v", step.Rows, step.Duration.Round(time.Millisecond))
}

// RecordStep implements pipeline.StepRecorder.
func (r *Recorder) RecordStep(ctx context.Context, step pipeline.Step) error {
	var errMessage *string
	if step.Err != nil {
		msg := step.Err.Error()
		errMessage = &msg
	}

	_, err := r.DB.Exec(ctx, `
		INSERT INTO migration_runs (run_id, command, stage, domain, step_index, step_name, execution_time, executed_by, status, error_message, row_count, resume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.RunID, r.Command, step.Stage, step.Domain.String(), step.Index, step.Name,
		step.Duration, r.User, StepStatus(step), errMessage, step.Rows, step.Resume())
	if err != nil {
		return fmt.Errorf("recording step %s: %w", step.Name, err)
	}

	level, message, details := StepLog(step)
	return r.Log(ctx, level, message, step.Name, details)
}

// Log writes one migration_logs entry for this run.
func (r *Recorder) Log(ctx context.Context, level, message, stepName, details string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO migration_logs (level, message, user_name, run_id, step_name, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, level, message, r.User, r.RunID, stepName, details)
	if err != nil {
		return fmt.Errorf("writing migration log: %w", err)
	}
	return nil
}

// GetRunHistory retrieves recorded steps, newest first, optionally limited to
// one domain.
func GetRunHistory(ctx context.Context, db DB, limit int, domainFilter string) ([]RunRecord, error) {
	query := `
		SELECT id, run_id, command, stage, domain, step_index, step_name, executed_at,
		       execution_time, executed_by, status, COALESCE(error_message, ''), row_count, COALESCE(resume, '')
		FROM migration_runs
	`

	var args []any
	if domainFilter != "" {
		args = append(args, domainFilter)
		query += fmt.Sprintf(" WHERE domain = $%d", len(args))
	}

	query += " ORDER BY executed_at DESC, id DESC"

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		var executionTime *time.Duration

		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Command,
			&record.Stage,
			&record.Domain,
			&record.StepIndex,
			&record.StepName,
			&record.ExecutedAt,
			&executionTime,
			&record.ExecutedBy,
			&record.Status,
			&record.ErrorMessage,
			&record.Rows,
			&record.Resume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}

		if executionTime != nil {
			record.ExecutionTime = *executionTime
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// GetRunLogs retrieves migration logs with optional limit
func GetRunLogs(ctx context.Context, db DB, limit int) ([]RunLog, error) {
	query := `
		SELECT id, timestamp, level, message, COALESCE(user_name, ''), COALESCE(details, ''),
		       COALESCE(run_id, ''), COALESCE(step_name, '')
		FROM migration_logs
		ORDER BY timestamp DESC, id DESC
	`

	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration logs: %w", err)
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var log RunLog

		err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.Level,
			&log.Message,
			&log.User,
			&log.Details,
			&log.RunID,
			&log.StepName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan migration log: %w", err)
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// RunSummary describes the most recent run.
type RunSummary struct {
	RunID     string
	Command   string
	StartedAt time.Time
	Steps     int
	Rows      int64
	Failed    []RunRecord
}

// LastRun summarises the newest run, or returns nil when nothing was
// recorded yet.
func LastRun(ctx context.Context, db DB) (*RunSummary, error) {
	rows, err := db.Query(ctx, `
		SELECT id, run_id, command, stage, domain, step_index, step_name, executed_at,
		       execution_time, executed_by, status, COALESCE(error_message, ''), row_count, COALESCE(resume, '')
		FROM migration_runs
		WHERE run_id = (SELECT run_id FROM migration_runs ORDER BY executed_at DESC, id DESC LIMIT 1)
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		var executionTime *time.Duration
		if err := rows.Scan(&record.ID, &record.RunID, &record.Command, &record.Stage, &record.Domain,
			&record.StepIndex, &record.StepName, &record.ExecutedAt, &executionTime, &record.ExecutedBy,
			&record.Status, &record.ErrorMessage, &record.Rows, &record.Resume); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if executionTime != nil {
			record.ExecutionTime = *executionTime
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Summarise(records), nil
}

// Summarise folds the steps of one run into a summary.
func Summarise(records []RunRecord) *RunSummary {
	if len(records) == 0 {
		return nil
	}
	sum := &RunSummary{
		RunID:     records[0].RunID,
		Command:   records[0].Command,
		StartedAt: records[0].ExecutedAt,
	}
	for _, r := range records {
		sum.Steps++
		sum.Rows += r.Rows
		if r.ExecutedAt.Before(sum.StartedAt) {
			sum.StartedAt = r.ExecutedAt
		}
		if r.Status == "failed" {
			sum.Failed = append(sum.Failed, r)
		}
	}
	return sum
}

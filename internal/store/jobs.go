package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxAttempts bounds automatic re-deliveries of a job before it is
// parked in the failed state.
const DefaultMaxAttempts = 3

const jobColumns = "id, video_id, type, status, attempts, max_attempts, locked_at, locked_by, error_message, created_at, updated_at"

// EnqueueJob inserts a pending job for a video.
func (s *Store) EnqueueJob(ctx context.Context, videoID string) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (video_id, type, status, attempts, max_attempts, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		videoID,
		JobTypeDub,
		JobPending,
		s.maxAttempts,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns nil when not found.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNextJob atomically leases the oldest runnable job for workerID. A job
// is runnable when pending, or when still marked running but its lease is
// older than lockTimeout (a previous worker crashed mid-flight). Returns nil
// when the queue is empty.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string, lockTimeout time.Duration) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	stale := now.Add(-lockTimeout).Format(time.RFC3339Nano)
	timestamp := now.Format(time.RFC3339Nano)

	row := s.db.QueryRowContext(ctx,
		`UPDATE jobs
         SET status = ?, attempts = attempts + 1, locked_at = ?, locked_by = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM jobs
             WHERE status = ?
                OR (status = ? AND (locked_at IS NULL OR locked_at < ?))
             ORDER BY created_at, id
             LIMIT 1
         )
         RETURNING `+jobColumns,
		JobRunning, timestamp, workerID, timestamp,
		JobPending,
		JobRunning, stale,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job done and releases its lease.
func (s *Store) CompleteJob(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, locked_at = NULL, locked_by = NULL, error_message = NULL, updated_at = ? WHERE id = ?`,
		JobDone,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a job failure. While attempts remain the job returns to
// pending for another delivery; otherwise it is parked as failed. Reports
// whether the job will be retried.
func (s *Store) FailJob(ctx context.Context, id int64, message string) (bool, error) {
	ctx = ensureContext(ctx)
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, fmt.Errorf("job %d not found", id)
	}

	retry := job.Attempts < job.MaxAttempts
	status := JobFailed
	if retry {
		status = JobPending
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, locked_at = NULL, locked_by = NULL, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return retry, nil
}

// ParkJob marks a job failed outright regardless of remaining attempts.
// Used for permanent failures where redelivery cannot succeed.
func (s *Store) ParkJob(ctx context.Context, id int64, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, locked_at = NULL, locked_by = NULL, error_message = ?, updated_at = ? WHERE id = ?`,
		JobFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("park job: %w", err)
	}
	return nil
}

// ReleaseJob returns a running job to pending without consuming an attempt.
// Used when the failure was infrastructure rather than the job itself.
func (s *Store) ReleaseJob(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, attempts = CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END,
             locked_at = NULL, locked_by = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		JobPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobRunning,
	); err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// Heartbeat refreshes the lease on a running job so long stages are not
// reclaimed by other workers.
func (s *Store) Heartbeat(ctx context.Context, id int64, workerID string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET locked_at = ?, updated_at = ? WHERE id = ? AND status = ? AND locked_by = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobRunning,
		workerID,
	); err != nil {
		return fmt.Errorf("heartbeat job: %w", err)
	}
	return nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobsForVideo returns all jobs for a video, oldest first.
func (s *Store) JobsForVideo(ctx context.Context, videoID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE video_id = ? ORDER BY created_at, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("jobs for video: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Health summarizes job counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch JobStatus(status) {
		case JobPending:
			summary.Pending = count
		case JobRunning:
			summary.Running = count
		case JobDone:
			summary.Done = count
		case JobFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

// ClearJobs removes jobs matching the provided statuses, or every job when
// none are given.
func (s *Store) ClearJobs(ctx context.Context, statuses ...JobStatus) (int64, error) {
	if len(statuses) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
		if err != nil {
			return 0, fmt.Errorf("clear jobs: %w", err)
		}
		return res.RowsAffected()
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		videoID      string
		jobType      string
		statusStr    string
		attempts     int
		maxAttempts  int
		lockedAtRaw  sql.NullString
		lockedBy     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&jobType,
		&statusStr,
		&attempts,
		&maxAttempts,
		&lockedAtRaw,
		&lockedBy,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		VideoID:      videoID,
		Type:         jobType,
		Status:       JobStatus(statusStr),
		Attempts:     attempts,
		MaxAttempts:  maxAttempts,
		LockedBy:     lockedBy.String,
		ErrorMessage: errorMessage.String,
	}
	if lockedAtRaw.Valid {
		if lockedAt, err := parseTimeString(lockedAtRaw.String); err == nil {
			job.LockedAt = &lockedAt
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// ABOUTME: Postgres-backed job queue: enqueue, claim with SKIP LOCKED, complete, fail.
// ABOUTME: Failed jobs back off exponentially and go dead after max_attempts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job is a claimed job ready for execution by the worker pool.
type Job struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Attempts int32
}

// ErrNoPool is returned by pool-only operations on a Store built with NewFromDB.
var ErrNoPool = errors.New("store has no pgx pool")

// ClaimJob atomically claims one pending job from the named queue for the
// given workerID using FOR UPDATE SKIP LOCKED. Returns (nil, nil) when no
// job is currently available.
func (s *Store) ClaimJob(ctx context.Context, queue, workerID string) (*Job, error) {
	if s.pool == nil {
		return nil, ErrNoPool
	}
	var j Job
	err := s.pool.QueryRow(ctx, `
		UPDATE job_queue SET
			status = 'running',
			attempts = attempts + 1,
			locked_by = $2,
			locked_at = now()
		WHERE id = (
			SELECT id FROM job_queue
			WHERE queue = $1 AND status = 'pending' AND run_after <= now()
			ORDER BY run_after, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, payload, attempts`, queue, workerID).Scan(&j.ID, &j.Queue, &j.Payload, &j.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &j, nil
}

// CompleteJob marks a job as succeeded.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET status = 'succeeded', finished_at = now(), locked_by = NULL, locked_at = NULL
		WHERE id = $1`, id); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// FailJob records errMsg and either reschedules the job with exponential
// backoff or moves it to 'dead' when max_attempts is exhausted.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'pending' END,
			last_error = NULLIF($2, ''),
			locked_by = NULL,
			locked_at = NULL,
			run_after = now() + make_interval(secs => power(2, LEAST(attempts, 10))),
			finished_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END
		WHERE id = $1`, id, errMsg); err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// RecoverStaleJobs resets jobs stuck in 'running' state longer than staleAfter
// back to 'pending'. Returns the number of jobs recovered.
func (s *Store) RecoverStaleJobs(ctx context.Context, staleAfter time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET status = 'pending', locked_by = NULL, locked_at = NULL
		WHERE status = 'running' AND locked_at < now() - make_interval(secs => $1)`,
		staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return int(rowsAffected(res)), nil
}

// EnqueueJob inserts a new job into the named queue and returns its ID.
// maxAttempts <= 0 takes the column default.
func (s *Store) EnqueueJob(ctx context.Context, queue string, payload json.RawMessage, maxAttempts int32) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO job_queue (queue, payload, max_attempts)
		VALUES ($1, $2, CASE WHEN $3 > 0 THEN $3 ELSE 5 END)
		RETURNING id`, queue, []byte(payload), maxAttempts).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

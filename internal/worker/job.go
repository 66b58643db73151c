// Package worker runs jobs from the Postgres job_queue table. One polling
// goroutine per registered queue claims jobs with FOR UPDATE SKIP LOCKED;
// a recovery goroutine returns jobs abandoned in 'running' to 'pending'.
//
// The notify queue is the only producer today: task assignments and task
// comments enqueue notification fan-out jobs.
package worker

import (
	"context"
	"encoding/json"
)

// Handler is the function executed for each claimed job.
// A non-nil return value triggers retry logic (exponential backoff up to
// max_attempts, then dead status). A nil return marks the job succeeded.
type Handler func(ctx context.Context, payload json.RawMessage) error

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
)

var jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pmtweb_worker_jobs_total",
	Help: "Jobs executed by the worker pool, by queue and outcome.",
}, []string{"queue", "outcome"})

// JobStore is the job_queue access the pool needs. Implemented by *store.Store.
type JobStore interface {
	ClaimJob(ctx context.Context, queue, workerID string) (*store.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
	RecoverStaleJobs(ctx context.Context, staleAfter time.Duration) (int, error)
}

const (
	// defaultPollInterval is how often each queue goroutine checks for new jobs.
	defaultPollInterval = 2 * time.Second

	// staleCheckInterval is how often the recovery goroutine runs.
	staleCheckInterval = 1 * time.Minute

	// staleThreshold is the age at which a 'running' job is considered stuck.
	staleThreshold = 5 * time.Minute
)

// Pool manages a set of goroutine workers that claim and execute jobs from
// the job_queue table. One polling goroutine runs per registered queue; a
// shared stale-lock recovery goroutine resets stuck jobs.
type Pool struct {
	store        JobStore
	workerID     string
	pollInterval time.Duration
	mu           sync.RWMutex
	handlers     map[string]Handler
}

// New creates a Pool backed by s. A random workerID is generated at construction
// time to distinguish this process in the locked_by column.
func New(s JobStore) *Pool {
	return &Pool{
		store:        s,
		workerID:     uuid.New().String(),
		pollInterval: defaultPollInterval,
		handlers:     make(map[string]Handler),
	}
}

// SetPollInterval overrides how often queues are polled. Must be called before Start.
func (p *Pool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// WorkerID returns the id this pool writes to locked_by.
func (p *Pool) WorkerID() string { return p.workerID }

// Register associates h with the named queue. Must be called before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[queue] = h
}

// Start launches one polling goroutine per registered queue plus the stale-lock
// recovery goroutine, then blocks until ctx is cancelled. When ctx is cancelled,
// all goroutines stop accepting new jobs, any in-flight job completes, and Start
// returns after all goroutines have exited.
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup

	for _, q := range queues {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			p.runQueue(ctx, queue)
		}(q)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runStaleRecovery(ctx)
	}()

	wg.Wait()
	slog.Info("worker pool stopped", "worker_id", p.workerID)
}

// runQueue polls queue until ctx is cancelled. Each tick drains every job
// that is ready so a burst of assignments is delivered in one pass.
func (p *Pool) runQueue(ctx context.Context, queue string) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "worker queue started", "queue", queue, "worker_id", p.workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker queue stopping", "queue", queue)
			return
		case <-ticker.C:
			for ctx.Err() == nil && p.processOne(ctx, queue) {
			}
		}
	}
}

// processOne claims one job from queue and executes it. It reports whether a
// job was claimed. Errors are logged and never stop the polling loop.
func (p *Pool) processOne(ctx context.Context, queue string) bool {
	job, err := p.store.ClaimJob(ctx, queue, p.workerID)
	if err != nil {
		slog.ErrorContext(ctx, "claim job", "queue", queue, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	p.mu.RLock()
	h := p.handlers[queue]
	p.mu.RUnlock()

	if h == nil {
		slog.ErrorContext(ctx, "no handler registered for queue", "queue", queue, "job_id", job.ID)
		return false
	}

	log := slog.With("queue", queue, "job_id", job.ID, "attempt", job.Attempts)
	start := time.Now()
	if err := h(ctx, job.Payload); err != nil {
		jobsProcessed.WithLabelValues(queue, "failed").Inc()
		log.ErrorContext(ctx, "job handler failed", "error", err)
		if failErr := p.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			log.ErrorContext(ctx, "fail job", "error", failErr)
		}
		return true
	}

	if err := p.store.CompleteJob(ctx, job.ID); err != nil {
		log.ErrorContext(ctx, "complete job", "error", err)
		return true
	}
	jobsProcessed.WithLabelValues(queue, "succeeded").Inc()
	log.DebugContext(ctx, "job completed", "duration", time.Since(start))
	return true
}

// runStaleRecovery periodically resets jobs stuck in 'running' state. Uses
// time.NewTicker (not time.After) to avoid timer leaks.
func (p *Pool) runStaleRecovery(ctx context.Context) {
	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	slog.Info("stale recovery started", "worker_id", p.workerID,
		"threshold", staleThreshold, "check_interval", staleCheckInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale recovery stopping")
			return
		case <-ticker.C:
			n, err := p.store.RecoverStaleJobs(ctx, staleThreshold)
			if err != nil {
				slog.Error("stale job recovery error", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reclaimed stale jobs", "count", n)
			}
		}
	}
}

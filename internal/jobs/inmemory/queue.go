// Package inmemory is a channel-backed job queue and map-backed job store for
// single-instance deployments and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/fiscal-pilot/internal/jobs"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
type Queue struct {
	jobChan    chan *jobs.CycleJob
	closeChan  chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	store      jobs.JobStore
	closed     bool
	workers    int
	maxRetries int
	backoff    func(retry int) time.Duration
	now        func() time.Time
}

// Option customizes a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithMaxRetries sets the retry budget for jobs that do not carry one.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithBackoff overrides the delay before retry number retry (1-based).
func WithBackoff(f func(retry int) time.Duration) Option {
	return func(q *Queue) { q.backoff = f }
}

// NewQueue creates a new in-memory job queue. bufferSize determines how
// many jobs can be queued before Publish blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:    make(chan *jobs.CycleJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    5,
		maxRetries: 3,
		backoff:    func(retry int) time.Duration { return time.Duration(retry) * time.Second },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish enqueues a cycle job for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, job *jobs.CycleJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	// workers own the queued copy; the caller keeps job
	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	log := logger.FromContext(ctx)
	log.Debug().Int("workers", q.workers).Msg("Job workers started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.CycleJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("type", string(job.Type)).
		Str("subject_id", job.SubjectID).
		Logger()

	job.Status = jobs.JobStatusRunning
	started := q.now().UTC()
	job.StartedAt = &started
	q.save(ctx, job)

	err := q.safeHandle(ctx, job, handler)

	completed := q.now().UTC()
	job.CompletedAt = &completed

	if err != nil {
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			delay := q.backoff(job.RetryCount)
			log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", delay).Msg("Job failed, retrying")
			q.save(ctx, job)

			retry := *job
			time.AfterFunc(delay, func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				if err := q.Publish(ctx, &retry); err != nil {
					log.Debug().Err(err).Msg("Retry dropped")
				}
			})
			return
		}
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.save(ctx, job)
}

func (q *Queue) safeHandle(ctx context.Context, job *jobs.CycleJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.CycleJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop stops the queue and waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoHandler is reported when a job type has no registered handler.
var ErrNoHandler = errors.New("no handler registered for job type")

// ErrQueueStopped is reported for jobs submitted to, or still pending in, a
// stopped queue.
var ErrQueueStopped = errors.New("queue stopped")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

type permanentError struct{ error }

func (p permanentError) Unwrap() error { return p.error }

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnDone, when set, is called once per job with its final outcome.
	OnDone func(job Job, err error)
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
// Jobs are routed to handlers by Type. Stop drains the buffer before
// returning, and a stopped queue rejects every Enqueue.
type Queue struct {
	name string

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	onDone     func(Job, error)

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	jobs      chan Job
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	retries   sync.WaitGroup
	producers sync.WaitGroup
	mu        sync.Mutex
	started   bool
	stopping  bool
}

// NewQueue builds a new queue.
func NewQueue(name string, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		onDone:     cfg.OnDone,
		handlers:   make(map[string]Handler),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Handle registers the handler for jobType, replacing any previous one.
func (q *Queue) Handle(jobType string, handler Handler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[jobType] = handler
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopping {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop rejects new jobs, lets the workers finish everything already
// buffered, then cancels pending retries. Jobs that never ran are handed to
// OnDone with an error.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopping {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	q.mu.Unlock()

	q.producers.Wait()
	close(q.jobs)
	q.wg.Wait()
	q.cancel()
	q.retries.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopping {
		q.mu.Unlock()
		return fmt.Errorf("queue %s stopped: %w", q.name, ErrQueueStopped)
	}
	ctx := q.ctx
	q.producers.Add(1)
	q.mu.Unlock()
	defer q.producers.Done()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, err)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Len reports how many jobs are buffered.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.process(job)
	}
}

func (q *Queue) isStopping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopping
}

func (q *Queue) process(job Job) {
	q.handlersMu.RLock()
	handler, ok := q.handlers[job.Type]
	q.handlersMu.RUnlock()

	var err error
	if !ok {
		err = Permanent(fmt.Errorf("%w: %s", ErrNoHandler, job.Type))
	} else {
		err = handler(q.ctx, job)
	}
	if err == nil {
		q.done(job, nil)
		return
	}
	q.handleFailure(job, err)
}

func (q *Queue) handleFailure(job Job, err error) {
	var permanent permanentError
	if errors.As(err, &permanent) || job.Attempt >= q.maxRetries {
		q.logger.Error("job failed",
			zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type),
			zap.Int("attempt", job.Attempt), zap.Error(err))
		q.done(job, err)
		return
	}
	if q.isStopping() {
		q.logger.Error("job failed during shutdown",
			zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type),
			zap.Int("attempt", job.Attempt), zap.Error(err))
		q.done(job, err)
		return
	}
	job.Attempt++
	q.logger.Warn("job failed, retrying",
		zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt), zap.Error(err))

	delay := q.retryDelay * time.Duration(job.Attempt)
	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.done(j, fmt.Errorf("retry abandoned: %w", ErrQueueStopped))
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("queue", q.name), zap.String("job_id", j.ID), zap.Error(err))
				q.done(j, err)
			}
		}
	}(job)
}

func (q *Queue) done(job Job, err error) {
	if q.onDone != nil {
		q.onDone(job, err)
	}
}

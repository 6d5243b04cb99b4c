// Package queue runs independent pipeline requests on a bounded worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

var (
	ErrQueueFull   = errors.New("run queue is full")
	ErrStopped     = errors.New("run queue is stopped")
	ErrInvalidJob  = errors.New("job needs an id and wizard data")
	ErrDuplicateID = errors.New("job id is already queued or running")
)

// Runner executes one pipeline request. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error)
}

// Job is one queued pipeline run. Its ID is used as the run ID.
type Job struct {
	ID          string                `json:"id"`
	Source      string                `json:"source,omitempty"`
	Status      Status                `json:"status"`
	CreatedAt   time.Time             `json:"createdAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	Duration    time.Duration         `json:"duration,omitempty"`
	Attempts    int                   `json:"attempts"`
	Error       string                `json:"error,omitempty"`
	Result      *pipeline.BuildResult `json:"-"`

	Request pipeline.Request `json:"-"`

	cancel context.CancelFunc
}

// Queue feeds jobs to a fixed number of workers.
type Queue struct {
	jobs        chan *Job
	workers     int
	runner      Runner
	policy      retry.Policy
	onDone      func(*Job)
	mu          sync.RWMutex
	pending     map[string]bool
	active      map[string]*Job
	history     []*Job
	historySize int
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithRetryPolicy retries transient failures of a job.
func WithRetryPolicy(p retry.Policy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithCompletion registers fn, called on the worker goroutine after each job.
func WithCompletion(fn func(*Job)) Option {
	return func(q *Queue) { q.onDone = fn }
}

// New creates a queue holding up to size waiting jobs.
func New(runner Runner, workers, size int, opts ...Option) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if size <= 0 {
		size = 32
	}
	if runner == nil {
		panic("queue.New: runner is required")
	}
	q := &Queue{
		jobs:        make(chan *Job, size),
		workers:     workers,
		runner:      runner,
		policy:      retry.DefaultPolicy(),
		pending:     make(map[string]bool),
		active:      make(map[string]*Job),
		historySize: 50,
		stop:        make(chan struct{}),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting run queue", logfields.Count(q.workers), slog.Int("capacity", cap(q.jobs)))
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs and waits for the workers. Queued jobs are dropped.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a job without blocking.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil || job.ID == "" || job.Request.Wizard == nil {
		return ErrInvalidJob
	}
	select {
	case <-q.stop:
		return ErrStopped
	default:
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending[job.ID] || q.active[job.ID] != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
	}
	job.Status = StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Request.RunID = job.ID

	select {
	case q.jobs <- job:
		q.pending[job.ID] = true
		return nil
	default:
		return ErrQueueFull
	}
}

// Length returns the number of waiting jobs.
func (q *Queue) Length() int { return len(q.jobs) }

// Snapshot returns a copy of a job, searching active jobs then history.
func (q *Queue) Snapshot(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if j, ok := q.active[id]; ok {
		return copyJob(j), true
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].ID == id {
			return copyJob(q.history[i]), true
		}
	}
	return Job{}, false
}

func copyJob(j *Job) Job {
	cp := *j
	cp.cancel = nil
	return cp
}

func (q *Queue) worker(ctx context.Context, name string) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case job := <-q.jobs:
			q.process(ctx, job, name)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job, worker string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	q.mu.Lock()
	delete(q.pending, job.ID)
	job.cancel = cancel
	job.StartedAt = &start
	job.Status = StatusRunning
	q.active[job.ID] = job
	q.mu.Unlock()

	slog.Info("Run started", logfields.RunID(job.ID), logfields.Job(worker), slog.String("source", job.Source))
	res, err := q.execute(jobCtx, job)
	q.complete(job, res, err)

	if q.onDone != nil {
		q.onDone(job)
	}
}

// execute runs the job, retrying failures marked retryable whose workspace was
// not retained, since a retained workspace still owns the run ID.
func (q *Queue) execute(ctx context.Context, job *Job) (*pipeline.BuildResult, error) {
	for {
		q.mu.Lock()
		job.Attempts++
		attempt := job.Attempts
		q.mu.Unlock()

		res, err := q.runner.Run(ctx, job.Request)
		if err == nil || !q.shouldRetry(attempt, res, err) {
			return res, err
		}
		delay := q.policy.Delay(attempt)
		slog.Warn("Transient run failure, retrying",
			logfields.RunID(job.ID),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", q.policy.MaxRetries),
			logfields.Duration(delay),
			logfields.Error(err))
		if sErr := q.sleep(ctx, delay); sErr != nil {
			return res, err
		}
	}
}

func (q *Queue) shouldRetry(attempt int, res *pipeline.BuildResult, err error) bool {
	if attempt > q.policy.MaxRetries || !retry.Retryable(err) {
		return false
	}
	return res == nil || res.Metadata.RetainedPath == ""
}

func (q *Queue) complete(job *Job, res *pipeline.BuildResult, err error) {
	end := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	job.CompletedAt = &end
	job.Duration = end.Sub(*job.StartedAt)
	job.Result = res
	job.cancel = nil
	switch {
	case err == nil:
		job.Status = StatusCompleted
	case ferrors.HasCategory(err, ferrors.CategoryCanceled):
		job.Status = StatusCanceled
		job.Error = err.Error()
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	delete(q.active, job.ID)
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		q.history = append([]*Job(nil), q.history[len(q.history)-q.historySize:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

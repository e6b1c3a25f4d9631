package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRetention is how long finished jobs stay queryable
const DefaultRetention = time.Hour

// drainNotifyTimeout bounds webhook delivery for jobs failed at shutdown
const drainNotifyTimeout = 5 * time.Second

var (
	ErrQueueStopped = errors.New("job queue stopped before the job ran")
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueClosed  = errors.New("job queue is closed")
	ErrJobNotFound  = errors.New("job not found")
)

// Scanner runs one synchronous scan
type Scanner interface {
	Process(ctx context.Context, content string, mode models.Mode, opts models.Options) (*models.Result, error)
}

// Notifier is told about every finished job that asked for it
type Notifier interface {
	Notify(ctx context.Context, job Job) error
}

// Queue runs scans on a fixed pool of workers
type Queue struct {
	scanner   Scanner
	notifier  Notifier
	logger    *zap.Logger
	workers   int
	timeout   time.Duration
	retention time.Duration

	pending  chan string
	stop     chan struct{}
	stopOnce sync.Once
	group    *errgroup.Group
	cancel   context.CancelFunc

	mu       sync.RWMutex
	jobs     map[string]*Job
	requests map[string]Request
	done     map[string]chan struct{}
	closed   bool
}

// Option configures a Queue
type Option func(*Queue)

// WithWorkers sets the worker count; zero means one per CPU
func WithWorkers(n int) Option {
	return func(q *Queue) { q.workers = n }
}

// WithCapacity sets how many jobs may wait for a worker
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.pending = make(chan string, n)
		}
	}
}

// WithNotifier enables webhook delivery
func WithNotifier(n Notifier) Option {
	return func(q *Queue) { q.notifier = n }
}

// WithJobTimeout bounds each scan
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithRetention sets how long finished jobs are kept before the sweeper
// drops them; zero or less keeps them until Sweep is called
func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

// NewQueue creates a queue; call Start before submitting
func NewQueue(scanner Scanner, logger *zap.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		scanner:   scanner,
		logger:    logger,
		retention: DefaultRetention,
		pending:   make(chan string, 128),
		stop:      make(chan struct{}),
		jobs:      make(map[string]*Job),
		requests:  make(map[string]Request),
		done:      make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.workers <= 0 {
		q.workers = runtime.NumCPU()
	}
	return q
}

// Start launches the workers and the sweeper. They stop when ctx is
// cancelled or Shutdown is called. Jobs still queued when ctx ends are
// marked failed.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	q.group = g

	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					q.drain(gctx)
					return nil
				case id, ok := <-q.pending:
					if !ok {
						return nil
					}
					q.run(gctx, id)
				}
			}
		})
	}

	if q.retention > 0 {
		g.Go(func() error {
			q.sweepLoop(gctx)
			return nil
		})
	}

	q.logger.Debug("Job queue started",
		zap.Int("workers", q.workers),
		zap.Duration("retention", q.retention))
}

func (q *Queue) sweepLoop(ctx context.Context) {
	interval := q.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-ticker.C:
			q.Sweep(q.retention)
		}
	}
}

// Sweep drops finished jobs that completed more than olderThan ago and
// returns how many
func (q *Queue) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, job := range q.jobs {
		if job.Status.Done() && !job.CompletedAt.After(cutoff) {
			delete(q.jobs, id)
			delete(q.done, id)
			n++
		}
	}
	if n > 0 {
		q.logger.Debug("Swept finished jobs", zap.Int("removed", n))
	}
	return n
}

// Len returns the number of tracked jobs
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// Submit enqueues a scan and returns its job id without waiting
func (q *Queue) Submit(req Request) (string, error) {
	if req.Mode == "" {
		req.Mode = models.ModeDetect
	}
	if _, err := models.ParseMode(string(req.Mode)); err != nil {
		return "", err
	}

	id := uuid.New().String()
	job := &Job{
		ID:         id,
		Status:     StatusQueued,
		Mode:       req.Mode,
		WebhookURL: req.WebhookURL,
		CreatedAt:  time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	select {
	case q.pending <- id:
	default:
		return "", ErrQueueFull
	}
	q.jobs[id] = job
	q.requests[id] = req
	q.done[id] = make(chan struct{})

	q.logger.Debug("Job queued", zap.String("job", id), zap.String("mode", string(req.Mode)))
	return id, nil
}

// Get returns a snapshot of a job
func (q *Queue) Get(id string) (Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Wait blocks until the job finishes or ctx ends
func (q *Queue) Wait(ctx context.Context, id string) (Job, error) {
	q.mu.RLock()
	done, ok := q.done[id]
	q.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-done:
		return q.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Shutdown stops accepting jobs, lets queued ones finish and waits for the
// workers
func (q *Queue) Shutdown() error {
	q.mu.Lock()
	q.closed = true
	q.stopOnce.Do(func() {
		close(q.pending)
		close(q.stop)
	})
	q.mu.Unlock()

	if q.group == nil {
		return nil
	}
	err := q.group.Wait()
	q.cancel()
	return err
}

// drain fails every job still queued once the workers stop early, so Wait
// returns and webhooks fire
func (q *Queue) drain(ctx context.Context) {
	q.mu.Lock()
	q.closed = true
	now := time.Now()
	var failed []Job
	for id, job := range q.jobs {
		if job.Status != StatusQueued {
			continue
		}
		delete(q.requests, id)
		job.Status = StatusFailed
		job.Error = fmt.Errorf("%w: %v", ErrQueueStopped, ctx.Err()).Error()
		job.CompletedAt = now
		close(q.done[id])
		failed = append(failed, *job)
	}
	q.mu.Unlock()

	if len(failed) == 0 {
		return
	}
	q.logger.Warn("Failed queued jobs on shutdown", zap.Int("jobs", len(failed)))

	if q.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainNotifyTimeout)
	defer cancel()
	for _, job := range failed {
		if job.WebhookURL == "" {
			continue
		}
		if err := q.notifier.Notify(notifyCtx, job); err != nil {
			q.logger.Warn("Webhook delivery failed",
				zap.String("job", job.ID),
				zap.String("url", job.WebhookURL),
				zap.Error(fmt.Errorf("notify: %w", err)))
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusQueued {
		// Already failed by drain
		q.mu.Unlock()
		return
	}
	req := q.requests[id]
	delete(q.requests, id)
	job.Status = StatusProcessing
	job.StartedAt = time.Now()
	q.mu.Unlock()

	scanCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.scanner.Process(scanCtx, req.Content, req.Mode, req.Options)

	q.mu.Lock()
	job.CompletedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
		job.Result = result
		job.View = result.View()
	}
	snapshot := *job
	close(q.done[id])
	q.mu.Unlock()

	q.logger.Debug("Job finished",
		zap.String("job", id),
		zap.String("status", string(snapshot.Status)),
		zap.Duration("duration", snapshot.CompletedAt.Sub(snapshot.StartedAt)))

	if q.notifier != nil && snapshot.WebhookURL != "" {
		if err := q.notifier.Notify(ctx, snapshot); err != nil {
			q.logger.Warn("Webhook delivery failed",
				zap.String("job", id),
				zap.String("url", snapshot.WebhookURL),
				zap.Error(fmt.Errorf("notify: %w", err)))
		}
	}
}

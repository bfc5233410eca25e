// Package bridge provides the process-wide run pool: a fixed set of workers
// pulling queued runs off a bounded channel, with a future handed back per
// submission. Capacity is the only cross-run coupling; each run owns its
// browser session.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/config"
)

var (
	// ErrQueueFull is returned when the submission queue has no room.
	ErrQueueFull = errors.New("run queue is full")
	// ErrStopped is returned for submissions after Stop.
	ErrStopped = errors.New("bridge is stopped")
)

// Job is one whole agent run. The worker invokes it with a background
// context: an abandoned future never cancels a dispatched run.
type Job func(ctx context.Context) *schemas.TestReport

// Future is the handle for one submitted run.
type Future struct {
	ID     string
	done   chan struct{}
	report *schemas.TestReport
}

// Wait blocks until the run finishes or the caller's context ends. A context
// error abandons the future only; the dispatched run keeps going.
func (f *Future) Wait(ctx context.Context) (*schemas.TestReport, error) {
	select {
	case <-f.done:
		return f.report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done exposes completion for select loops.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

type task struct {
	future *Future
	job    Job
}

// Bridge is the bounded worker pool. Create it once per process.
type Bridge struct {
	jobs   chan *task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// New starts the pool immediately. Zero or negative settings fall back to
// two workers and a queue of twice the worker count.
func New(cfg config.BridgeConfig, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = workers * 2
	}

	b := &Bridge{
		jobs:   make(chan *task, queue),
		logger: logger.Named("bridge"),
	}
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker(i)
	}
	b.logger.Info("Run pool started", zap.Int("workers", workers), zap.Int("queue", queue))
	return b
}

func (b *Bridge) worker(id int) {
	defer b.wg.Done()
	log := b.logger.With(zap.Int("worker", id))
	for t := range b.jobs {
		log.Debug("Run dispatched", zap.String("run_id", t.future.ID))
		t.future.report = b.runJob(t)
		close(t.future.done)
		log.Debug("Run completed", zap.String("run_id", t.future.ID))
	}
}

// runJob isolates one run so a panicking job takes down neither the worker
// nor its queued successors.
func (b *Bridge) runJob(t *task) (rep *schemas.TestReport) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("Run panicked in pool",
				zap.String("run_id", t.future.ID), zap.Any("panic", rec))
		}
	}()
	return t.job(context.Background())
}

// Submit enqueues one run. The context bounds the enqueue only, never the
// run itself. A full queue reports ErrQueueFull without blocking.
func (b *Bridge) Submit(ctx context.Context, job Job) (*Future, error) {
	if job == nil {
		return nil, errors.New("nil job")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStopped
	}

	fut := &Future{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	select {
	case b.jobs <- &task{future: fut, job: job}:
		b.logger.Debug("Run queued", zap.String("run_id", fut.ID))
		return fut, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight and queued runs to drain.
// Safe to call more than once.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.jobs)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("Run pool stopped")
}

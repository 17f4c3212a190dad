package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 4
	DefaultMaxAttempts  = 5
	DefaultPollInterval = time.Second
	DefaultBackoffBase  = 2 * time.Second
	DefaultBackoffMax   = 5 * time.Minute
)

// TaskHandler runs one task and reports whether it succeeded
type TaskHandler interface {
	HandleTask(ctx context.Context, task *model.Task) bool
}

// TaskWorker drains the task queue with a fixed pool of goroutines. A task
// whose handler fails is re-enqueued with exponential backoff until it has
// been attempted MaxAttempts times.
type TaskWorker struct {
	queue        interfaces.TaskQueue
	handler      TaskHandler
	workers      int
	maxAttempts  int
	pollInterval time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	now          func() time.Time
	stopCh       chan struct{}
	doneCh       chan struct{}
}

type TaskWorkerOption func(*TaskWorker)

func WithWorkers(n int) TaskWorkerOption {
	return func(w *TaskWorker) {
		if n > 0 {
			w.workers = n
		}
	}
}

func WithMaxAttempts(n int) TaskWorkerOption {
	return func(w *TaskWorker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithPollInterval(d time.Duration) TaskWorkerOption {
	return func(w *TaskWorker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithBackoff(base, maxDelay time.Duration) TaskWorkerOption {
	return func(w *TaskWorker) {
		w.backoffBase = base
		w.backoffMax = maxDelay
	}
}

func WithClock(now func() time.Time) TaskWorkerOption {
	return func(w *TaskWorker) {
		w.now = now
	}
}

func NewTaskWorker(queue interfaces.TaskQueue, handler TaskHandler, opts ...TaskWorkerOption) *TaskWorker {
	w := &TaskWorker{
		queue:        queue,
		handler:      handler,
		workers:      DefaultWorkers,
		maxAttempts:  DefaultMaxAttempts,
		pollInterval: DefaultPollInterval,
		backoffBase:  DefaultBackoffBase,
		backoffMax:   DefaultBackoffMax,
		now:          time.Now,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker pool in the background
func (w *TaskWorker) Start(ctx context.Context) error {
	logging.Default().Info("task worker starting",
		"workers", w.workers,
		"maxAttempts", w.maxAttempts)

	go w.run(ctx)
	return nil
}

// Stop signals the pool to stop and waits until every goroutine returned
func (w *TaskWorker) Stop() {
	logging.Default().Info("task worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("task worker stopped")
}

func (w *TaskWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		eg.Go(func() error {
			return w.loop(ctx)
		})
	}

	if err := eg.Wait(); err != nil {
		_ = errutil.Handle(ctx, err, "task worker exited")
	}
}

func (w *TaskWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-w.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			_ = errutil.Handle(ctx, err, "task processing failed")
		}
		if processed && err == nil {
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-w.stopCh:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce processes a single due task. It reports false when the queue had
// nothing to do.
func (w *TaskWorker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, goerr.Wrap(err, "failed to dequeue task")
	}
	if task == nil {
		return false, nil
	}

	logger := logging.From(ctx).With("taskID", task.ID, "kind", task.Kind, "attempt", task.Attempt)

	if w.handler.HandleTask(ctx, task) {
		logger.Debug("task done")
		return true, w.ack(ctx, task)
	}

	if task.Attempt+1 >= w.maxAttempts {
		logger.Error("task dropped after max attempts", "maxAttempts", w.maxAttempts)
		return true, w.ack(ctx, task)
	}

	// the failed attempt stays leased when the retry cannot be stored, so it
	// is delivered again after the lease
	next := task.Retry(w.now().Add(w.backoff(task.Attempt)))
	if err := w.queue.Enqueue(ctx, next); err != nil {
		return true, goerr.Wrap(err, "failed to re-enqueue task",
			goerr.V("task_id", task.ID), goerr.V("attempt", next.Attempt))
	}
	logger.Warn("task failed, retry scheduled", "notBefore", next.NotBefore)
	return true, w.ack(ctx, task)
}

func (w *TaskWorker) ack(ctx context.Context, task *model.Task) error {
	if err := w.queue.Ack(ctx, task); err != nil {
		return goerr.Wrap(err, "failed to ack task", goerr.V("task_id", task.ID))
	}
	return nil
}

// Drain processes tasks until none is due and returns how many were handled
func (w *TaskWorker) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}

func (w *TaskWorker) backoff(attempt int) time.Duration {
	d := w.backoffBase
	for i := 0; i < attempt && d < w.backoffMax; i++ {
		d *= 2
	}
	if d > w.backoffMax {
		d = w.backoffMax
	}
	return d
}

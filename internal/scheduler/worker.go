package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safenotsorry/checkin/internal/metrics"
)

const (
	// DefaultBatchSize is the number of timers claimed per poll.
	DefaultBatchSize = 100
	// DefaultPollInterval is the time between polls for due timers.
	DefaultPollInterval = time.Second
	// DefaultHandlerTimeout bounds a single timer callback.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultMetricsInterval is how often to update queue depth metrics.
	DefaultMetricsInterval = 10 * time.Second
)

// HandlerFunc handles one fired timer.
type HandlerFunc func(ctx context.Context, checkInID string) error

// Worker claims due timers and dispatches each to its kind's handler in
// its own goroutine, so a slow callback never delays another.
type Worker struct {
	queue           *Queue
	logger          *slog.Logger
	metrics         metrics.Recorder
	handlers        map[Kind]HandlerFunc
	batchSize       int
	pollInterval    time.Duration
	handlerTimeout  time.Duration
	metricsInterval time.Duration
	lastMetrics     time.Time
	now             func() time.Time

	mu       sync.Mutex
	started  bool
	inflight sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBatchSize sets how many timers are claimed per poll.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithPollInterval sets the polling period.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

// NewWorker creates a timer worker.
func NewWorker(queue *Queue, logger *slog.Logger, recorder metrics.Recorder, opts ...WorkerOption) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	w := &Worker{
		queue:           queue,
		logger:          logger.With("component", "scheduler.worker"),
		metrics:         recorder,
		handlers:        make(map[Kind]HandlerFunc),
		batchSize:       DefaultBatchSize,
		pollInterval:    DefaultPollInterval,
		handlerTimeout:  DefaultHandlerTimeout,
		metricsInterval: DefaultMetricsInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle registers the handler for a timer kind. Call before Run.
func (w *Worker) Handle(kind Kind, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = fn
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("timer worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("timer worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
			}
		}
	}
}

// ProcessOnce claims one batch of due timers and dispatches them.
// It returns the number dispatched without waiting for the handlers.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	now := w.now()
	timers, err := w.queue.ClaimDue(ctx, now, w.batchSize)
	if err != nil {
		if !errors.Is(err, ErrInvalidTimer) {
			return 0, fmt.Errorf("claim due timers: %w", err)
		}
		w.logger.Error("dropped undecodable timers", "error", err)
	}

	for _, t := range timers {
		w.metrics.ObserveTimerLag(now.Sub(t.FireAt))
		w.dispatch(ctx, t)
	}

	w.maybeUpdateQueueDepth(ctx)
	return len(timers), nil
}

func (w *Worker) dispatch(ctx context.Context, t Timer) {
	w.mu.Lock()
	fn, ok := w.handlers[t.Kind]
	w.mu.Unlock()

	if !ok {
		w.logger.Error("no handler for timer kind", "kind", t.Kind, "check_in_id", t.CheckInID)
		return
	}

	// The timer is already out of the queue, so the callback must not be
	// cut short when the poll loop stops.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.handlerTimeout)

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("timer handler panicked", "kind", t.Kind, "check_in_id", t.CheckInID, "panic", rec)
			}
		}()

		if err := fn(hctx, t.CheckInID); err != nil {
			w.logger.Warn("timer handler failed",
				"kind", t.Kind,
				"check_in_id", t.CheckInID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until in-flight handlers finish or ctx expires.
func (w *Worker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for timer handlers: %w", ctx.Err())
	}
}

// maybeUpdateQueueDepth periodically updates queue depth metric.
func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	depth, err := w.queue.Depth(ctx)
	if err != nil {
		w.logger.Warn("failed to read timer queue depth", "error", err)
		return
	}
	w.metrics.SetTimerQueueDepth(depth)
}

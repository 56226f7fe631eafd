package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"roombooking/internal/config"
	"roombooking/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultDeadLetterKey = "roombooking:deadletter"

var errPanicked = errors.New("task panicked")

type task struct {
	name       string
	fn         func(ctx context.Context) error
	enqueuedAt time.Time
}

// deadLetter is what gets pushed to Redis when a task exhausts its retries.
type deadLetter struct {
	Task       string    `json:"task"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FailedAt   time.Time `json:"failed_at"`
}

// Dispatcher runs fire-and-forget tasks on a fixed pool of workers. Enqueue
// never blocks: when the queue is full the task is dropped and logged.
type Dispatcher struct {
	queue       chan task
	workers     int
	retryPolicy RetryPolicy
	timeout     time.Duration
	logger      zerolog.Logger

	redis         *redis.Client
	deadLetterKey string

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg config.DispatcherConfig, logger *zerolog.Logger) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	return &Dispatcher{
		queue:   make(chan task, size),
		workers: workers,
		retryPolicy: RetryPolicy{
			MaxRetries:    retries,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			BackoffFactor: 2,
		},
		timeout:       cfg.TaskTimeout,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
		deadLetterKey: defaultDeadLetterKey,
	}
}

// WithDeadLetter records permanently failed tasks in a Redis list.
func (d *Dispatcher) WithDeadLetter(client *redis.Client, key string) *Dispatcher {
	d.redis = client
	if key != "" {
		d.deadLetterKey = key
	}
	return d
}

// Start launches the workers. They exit once Stop has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("Dispatcher started")
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for t := range d.queue {
				d.process(ctx, t)
			}
		}()
	}
}

// Enqueue schedules fn and reports whether it was accepted.
func (d *Dispatcher) Enqueue(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn().Str("task", name).Msg("Dispatcher stopped, task dropped")
		metrics.IncTask(name, "dropped")
		return false
	}

	select {
	case d.queue <- task{name: name, fn: fn, enqueuedAt: time.Now()}:
		return true
	default:
		d.logger.Error().Str("task", name).Msg("Dispatcher queue full, task dropped")
		metrics.IncTask(name, "dropped")
		return false
	}
}

// Stop refuses new tasks and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("Dispatcher stopped")
}

func (d *Dispatcher) process(ctx context.Context, t task) {
	// Queued work still runs during shutdown; only the waits between retries honor ctx.
	runCtx := context.WithoutCancel(ctx)

	attempts, err := d.retryPolicy.Do(ctx,
		func() error { return d.runOnce(runCtx, t) },
		func(attempt int, err error, wait time.Duration) {
			d.logger.Warn().Err(err).Str("task", t.name).Int("attempt", attempt).Dur("retry_in", wait).Msg("Task failed, retrying")
			metrics.IncTask(t.name, "retry")
		},
	)
	if err != nil {
		d.fail(t, err, attempts)
		return
	}
	metrics.IncTask(t.name, "ok")
}

func (d *Dispatcher) runOnce(ctx context.Context, t task) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("task", t.name).Msg("Task panicked")
			err = errPanicked
		}
	}()
	return t.fn(ctx)
}

func (d *Dispatcher) fail(t task, cause error, attempts int) {
	d.logger.Error().Err(cause).Str("task", t.name).Int("attempts", attempts).Msg("Task failed permanently")
	metrics.IncTask(t.name, "failed")

	if d.redis == nil {
		return
	}
	data, err := json.Marshal(deadLetter{
		Task:       t.name,
		Error:      cause.Error(),
		Attempts:   attempts,
		EnqueuedAt: t.enqueuedAt,
		FailedAt:   time.Now(),
	})
	if err != nil {
		d.logger.Error().Err(err).Str("task", t.name).Msg("Failed to encode dead letter")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.redis.LPush(ctx, d.deadLetterKey, data).Err(); err != nil {
		d.logger.Error().Err(err).Str("task", t.name).Msg("Dead letter push failed")
	}
}

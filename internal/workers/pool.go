// Package workers provides a bounded goroutine pool used to fan the
// evaluator's per-instance loss/gradient computation out across shards.
package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Task represents a unit of work to be processed.
type Task interface {
	Execute() error
}

// TaskFunc is a function that can be used as a Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Pool manages a pool of worker goroutines draining a bounded queue.
type Pool struct {
	logger *zap.Logger
	config *PoolConfig

	taskQueue chan Task
	workers   []*worker
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	taskLatency    prometheus.Histogram
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Name            string        // Pool name for logging and metric labels
	NumWorkers      int           // Number of worker goroutines
	QueueSize       int           // Size of the task queue
	TaskTimeout     time.Duration // Timeout for individual tasks
	ShutdownTimeout time.Duration // Timeout for graceful shutdown
	PanicRecovery   bool          // Enable panic recovery in workers
}

// DefaultPoolConfig sizes the pool for computation-bound shard
// evaluation: one worker per available CPU, whatever the shard count.
func DefaultPoolConfig(name string) *PoolConfig {
	return &PoolConfig{
		Name:            name,
		NumWorkers:      runtime.NumCPU(),
		QueueSize:       1024,
		TaskTimeout:     5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		PanicRecovery:   true,
	}
}

type worker struct {
	id     int
	pool   *Pool
	logger *zap.Logger
}

// NewPool creates a new worker pool. reg may be nil to skip metric
// registration (e.g. in tests that construct multiple pools).
func NewPool(logger *zap.Logger, config *PoolConfig, reg prometheus.Registerer) *Pool {
	if config == nil {
		config = DefaultPoolConfig("default")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		logger:    logger,
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		workers:   make([]*worker, config.NumWorkers),
		ctx:       ctx,
		cancel:    cancel,

		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "owlqn_worker_tasks_submitted_total",
			Help:        "Tasks submitted to the evaluator worker pool.",
			ConstLabels: prometheus.Labels{"pool": config.Name},
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "owlqn_worker_tasks_completed_total",
			Help:        "Tasks completed successfully by the evaluator worker pool.",
			ConstLabels: prometheus.Labels{"pool": config.Name},
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "owlqn_worker_tasks_failed_total",
			Help:        "Tasks that returned an error or panicked in the evaluator worker pool.",
			ConstLabels: prometheus.Labels{"pool": config.Name},
		}),
		taskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "owlqn_worker_task_seconds",
			Help:        "Per-shard evaluation latency.",
			ConstLabels: prometheus.Labels{"pool": config.Name},
			Buckets:     prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(p.tasksSubmitted, p.tasksCompleted, p.tasksFailed, p.taskLatency)
	}

	return p
}

// Start launches all worker goroutines.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}

	p.logger.Info("starting worker pool",
		zap.String("name", p.config.Name),
		zap.Int("workers", p.config.NumWorkers),
	)

	for i := 0; i < p.config.NumWorkers; i++ {
		w := &worker{id: i, pool: p, logger: p.logger.With(zap.Int("worker_id", i))}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run()
	}
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case task, ok := <-w.pool.taskQueue:
			if !ok {
				return
			}
			w.executeTask(task)
		}
	}
}

func (w *worker) executeTask(task Task) {
	start := time.Now()
	done := make(chan error, 1)

	go func() {
		var err error
		if w.pool.config.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("worker recovered from panic", zap.Any("panic", r))
					err = &PanicError{Recovered: r}
				}
				done <- err
			}()
		}
		err = task.Execute()
		if !w.pool.config.PanicRecovery {
			done <- err
		}
	}()

	select {
	case err := <-done:
		w.pool.taskLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			w.pool.tasksFailed.Inc()
			w.logger.Debug("task failed", zap.Error(err))
		} else {
			w.pool.tasksCompleted.Inc()
		}
	case <-time.After(w.pool.config.TaskTimeout):
		w.pool.tasksFailed.Inc()
		w.logger.Warn("task timed out", zap.Duration("timeout", w.pool.config.TaskTimeout))
	}
}

// Submit enqueues task, failing fast if the queue is full.
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}
	select {
	case p.taskQueue <- task:
		p.tasksSubmitted.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait submits task and blocks until it completes. A panic in task
// is returned as a *PanicError.
func (p *Pool) SubmitWait(task Task) error {
	done := make(chan error, 1)
	wrapper := TaskFunc(func() error {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Recovered: r}
				panic(r)
			}
		}()
		err := task.Execute()
		done <- err
		return err
	})
	if err := p.Submit(wrapper); err != nil {
		return err
	}
	return <-done
}

// Stop drains in-flight work and terminates all worker goroutines.
func (p *Pool) Stop() error {
	if !p.running.Swap(false) {
		return nil
	}

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped", zap.String("name", p.config.Name))
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out", zap.String("name", p.config.Name))
		return ErrShutdownTimeout
	}
}

// QueueLength returns the current number of queued tasks.
func (p *Pool) QueueLength() int { return len(p.taskQueue) }

// IsRunning reports whether the pool is accepting work.
func (p *Pool) IsRunning() bool { return p.running.Load() }

var (
	ErrPoolStopped     = &PoolError{Message: "pool is stopped"}
	ErrQueueFull       = &PoolError{Message: "task queue is full"}
	ErrShutdownTimeout = &PoolError{Message: "shutdown timed out"}
)

// PoolError represents a pool-level error.
type PoolError struct{ Message string }

func (e *PoolError) Error() string { return e.Message }

// PanicError wraps a value recovered from a panicking task.
type PanicError struct{ Recovered interface{} }

func (e *PanicError) Error() string { return "worker panic recovered" }

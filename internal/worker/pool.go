package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerPool runs a fixed set of workers over one shared Queue. Submit is safe
// from any goroutine. Shutdown drains what is already queued and then joins.
type WorkerPool struct {
	config  WorkerPoolConfig
	queue   *Queue
	workers []*Worker
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *Metrics

	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once

	startTime     time.Time
	activeWorkers atomic.Int64
	submittedJobs atomic.Int64
	startedJobs   atomic.Int64
	completedJobs atomic.Int64
	failedJobs    atomic.Int64
	rejectedJobs  atomic.Int64
}

type Option func(*WorkerPool)

// WithMetrics exports pool activity to the given Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *WorkerPool) { p.metrics = m }
}

// NewWorkerPool creates the pool and spawns every worker immediately.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger, opts ...Option) *WorkerPool {
	config = config.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	wp := &WorkerPool{
		config:    config,
		queue:     NewQueue(config.MaxQueueDepth),
		workers:   make([]*Worker, 0, config.WorkerCount),
		logger:    logger.With(zap.String("pool", config.Name)),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(wp)
	}

	for i := 0; i < config.WorkerCount; i++ {
		worker := &Worker{
			ID:     i + 1,
			queue:  wp.queue,
			poll:   config.PollInterval,
			wg:     &wp.wg,
			pool:   wp,
			logger: wp.logger.With(zap.Int("worker", i+1)),
		}
		wp.workers = append(wp.workers, worker)
		wp.wg.Add(1)
		go worker.start()
	}

	wp.logger.Info("Worker pool initialised",
		zap.Int("workers", config.WorkerCount),
		zap.Int("max_queue_depth", config.MaxQueueDepth))
	return wp
}

// Submit enqueues job and returns without waiting for it to run.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		wp.rejectedJobs.Add(1)
		return ErrPoolClosed
	}

	if err := wp.queue.Enqueue(job.stamped(wp.config.DefaultJobTimeout, time.Now())); err != nil {
		wp.rejectedJobs.Add(1)
		wp.logger.Warn("Job rejected", zap.String("job", job.Description()), zap.Error(err))
		return err
	}

	wp.submittedJobs.Add(1)
	if wp.metrics != nil {
		wp.metrics.JobsSubmitted.Inc()
		wp.metrics.QueueDepth.Set(float64(wp.queue.Len()))
	}
	return nil
}

// SubmitFunc submits fn with the pool's default job timeout.
func (wp *WorkerPool) SubmitFunc(description string, fn func()) error {
	return wp.Submit(NewJob(description, 0, fn))
}

// Shutdown stops accepting work, lets the workers finish every job queued before
// the call, and waits for them to exit. Later calls are no-ops.
func (wp *WorkerPool) Shutdown() {
	wp.shutdownOnce.Do(func() {
		wp.logger.Info("Shutting down worker pool", zap.Int("queued", wp.queue.Len()))

		wp.mu.Lock()
		wp.closed = true
		wp.mu.Unlock()

		for _, w := range wp.workers {
			w.stop.Store(true)
		}
		wp.queue.Close()
		wp.wg.Wait()

		wp.logger.Info("Worker pool stopped")
	})
}

func (wp *WorkerPool) IsClosed() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.closed
}

func (wp *WorkerPool) Size() int {
	return len(wp.workers)
}

// WorkerStates reports the current state of every worker, indexed by ID-1.
func (wp *WorkerPool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(wp.workers))
	for i, w := range wp.workers {
		states[i] = w.State()
	}
	return states
}

func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		Name:          wp.config.Name,
		WorkerCount:   len(wp.workers),
		ActiveWorkers: wp.activeWorkers.Load(),
		SubmittedJobs: wp.submittedJobs.Load(),
		StartedJobs:   wp.startedJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
		FailedJobs:    wp.failedJobs.Load(),
		RejectedJobs:  wp.rejectedJobs.Load(),
		QueueLength:   wp.queue.Len(),
		MaxQueueDepth: wp.config.MaxQueueDepth,
		Uptime:        time.Since(wp.startTime),
		IsRunning:     !wp.IsClosed(),
	}
}

func (wp *WorkerPool) jobStarted() {
	wp.startedJobs.Add(1)
	active := wp.activeWorkers.Add(1)
	if wp.metrics != nil {
		wp.metrics.ActiveWorkers.Set(float64(active))
		wp.metrics.QueueDepth.Set(float64(wp.queue.Len()))
	}
}

func (wp *WorkerPool) jobFinished(duration time.Duration, failed bool) {
	if failed {
		wp.failedJobs.Add(1)
	} else {
		wp.completedJobs.Add(1)
	}
	active := wp.activeWorkers.Add(-1)

	if wp.metrics == nil {
		return
	}
	wp.metrics.ActiveWorkers.Set(float64(active))
	wp.metrics.JobLatency.Observe(duration.Seconds())
	if failed {
		wp.metrics.JobsFailed.Inc()
	} else {
		wp.metrics.JobsCompleted.Inc()
	}
}

package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerExecuting
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerExecuting:
		return "executing"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Worker struct {
	ID     int
	queue  *Queue
	poll   time.Duration
	state  atomic.Int32
	stop   atomic.Bool
	wg     *sync.WaitGroup
	pool   *WorkerPool
	logger *zap.Logger
}

func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// start runs until a stop is requested and the queue has nothing left to hand out.
func (w *Worker) start() {
	defer w.wg.Done()
	defer w.state.Store(int32(WorkerStopped))

	w.logger.Debug("Worker started")
	for {
		job, ok := w.queue.Dequeue(w.poll)
		if !ok {
			if w.stop.Load() {
				w.logger.Debug("Worker stopped")
				return
			}
			continue
		}
		w.executeJob(job)
	}
}

func (w *Worker) executeJob(job Job) {
	w.state.Store(int32(WorkerExecuting))
	w.pool.jobStarted()
	startTime := time.Now()

	w.logger.Info("Starting job",
		zap.String("job", job.Description()),
		zap.Duration("queued_for", startTime.Sub(job.EnqueuedAt())))

	failed := w.runRecovered(job)

	duration := time.Since(startTime)
	if duration > job.Timeout() {
		w.logger.Warn("Job overran its timeout",
			zap.String("job", job.Description()),
			zap.Duration("timeout", job.Timeout()),
			zap.Duration("duration", duration))
	}
	w.logger.Info("Finished job",
		zap.String("job", job.Description()),
		zap.Duration("duration", duration),
		zap.Bool("failed", failed))

	w.pool.jobFinished(duration, failed)
	w.state.Store(int32(WorkerIdle))
}

// runRecovered executes the job callable. A panic is logged and reported as a
// failure; it never unwinds past the worker loop.
func (w *Worker) runRecovered(job Job) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			failed = true
			w.logger.Error("Job failed",
				zap.String("job", job.Description()),
				zap.Error(&PanicError{Description: job.Description(), Value: r}))
		}
	}()
	if job.fn != nil {
		job.fn()
	}
	return false
}

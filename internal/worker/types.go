package workerpool

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultWorkerCount  = 4
	DefaultPollInterval = time.Second
	DefaultJobTimeout   = 300 * time.Second
)

var (
	// ErrPoolClosed is returned for submissions made after Shutdown has begun.
	// Such jobs are rejected, never silently dropped.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrQueueFull is returned when MaxQueueDepth is set and the queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrNotCompleted is returned by Call when the caller stopped waiting before the
	// job signalled completion. The job may still run later.
	ErrNotCompleted = errors.New("job did not complete in time")
)

// PanicError carries the value recovered from a job callable that panicked.
type PanicError struct {
	Description string
	Value       any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %q panicked: %v", e.Description, e.Value)
}

// Job is an immutable unit of work. Results travel back only through whatever the
// callable's closure captured.
type Job struct {
	fn          func()
	description string
	timeout     time.Duration
	enqueuedAt  time.Time
}

// NewJob builds a job. A zero timeout is replaced by the pool's default on submit.
func NewJob(description string, timeout time.Duration, fn func()) Job {
	if description == "" {
		description = "anonymous job"
	}
	return Job{fn: fn, description: description, timeout: timeout}
}

func (j Job) Description() string { return j.description }
func (j Job) Timeout() time.Duration { return j.timeout }
func (j Job) EnqueuedAt() time.Time { return j.enqueuedAt }

func (j Job) stamped(defaultTimeout time.Duration, now time.Time) Job {
	if j.timeout <= 0 {
		j.timeout = defaultTimeout
	}
	j.enqueuedAt = now
	return j
}

type WorkerPoolConfig struct {
	Name string
	// WorkerCount is the fixed number of workers spawned at construction.
	WorkerCount int
	// PollInterval bounds how long an idle worker waits on the queue before
	// re-checking its stop flag.
	PollInterval time.Duration
	// MaxQueueDepth enables backpressure when positive. Zero keeps the queue
	// unbounded: work is never rejected and memory grows with the backlog.
	MaxQueueDepth int
	// DefaultJobTimeout applies to jobs submitted without a timeout.
	DefaultJobTimeout time.Duration
}

func (c WorkerPoolConfig) withDefaults() WorkerPoolConfig {
	if c.Name == "" {
		c.Name = "main"
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxQueueDepth < 0 {
		c.MaxQueueDepth = 0
	}
	if c.DefaultJobTimeout <= 0 {
		c.DefaultJobTimeout = DefaultJobTimeout
	}
	return c
}

type WorkerPoolStats struct {
	Name          string        `json:"name"`
	WorkerCount   int           `json:"worker_count"`
	ActiveWorkers int64         `json:"active_workers"`
	SubmittedJobs int64         `json:"submitted_jobs"`
	StartedJobs   int64         `json:"started_jobs"`
	CompletedJobs int64         `json:"completed_jobs"`
	FailedJobs    int64         `json:"failed_jobs"`
	RejectedJobs  int64         `json:"rejected_jobs"`
	QueueLength   int           `json:"queue_length"`
	MaxQueueDepth int           `json:"max_queue_depth"`
	Uptime        time.Duration `json:"uptime"`
	IsRunning     bool          `json:"is_running"`
}

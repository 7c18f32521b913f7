package workerpool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Submitter interface {
	Submit(job Job) error
}

// Bridge turns fire-and-forget pool submission into a blocking call for request
// handlers.
type Bridge struct {
	pool    Submitter
	timeout time.Duration
	logger  *zap.Logger
}

// NewBridge returns a bridge over pool. A positive timeout caps how long Call
// waits for the completion signal; zero waits until the job runs or ctx ends.
func NewBridge(pool Submitter, timeout time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{pool: pool, timeout: timeout, logger: logger}
}

type slot[T any] struct {
	value T
	err   error
}

// Call runs fn on a pool worker and blocks until it returns. The outcomes are
// kept apart: fn's own error comes back as is, a panic in fn as *PanicError,
// ErrPoolClosed or ErrQueueFull when the job was never queued, and
// ErrNotCompleted when the wait was cut short.
func Call[T any](ctx context.Context, b *Bridge, description string, fn func() (T, error)) (T, error) {
	var zero T
	var result slot[T]
	done := make(chan struct{})

	job := NewJob(description, 0, func() {
		completed := false
		defer func() {
			if completed {
				return
			}
			r := recover()
			result = slot[T]{err: &PanicError{Description: description, Value: r}}
			close(done)
			// let the worker log and count the failure
			panic(r)
		}()

		value, err := fn()
		result = slot[T]{value: value, err: err}
		completed = true
		close(done)
	})

	if err := b.pool.Submit(job); err != nil {
		return zero, err
	}

	var expired <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		return result.value, result.err
	case <-expired:
		b.logger.Warn("Gave up waiting for job",
			zap.String("job", description),
			zap.Duration("timeout", b.timeout))
		return zero, ErrNotCompleted
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrNotCompleted, ctx.Err())
	}
}

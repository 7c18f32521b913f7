package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Draft is a generated post pushed to a review channel.
type Draft struct {
	PostID          string
	TranscriptionID string
	Platform        string
	Tone            string
	Text            string
	GeneratedAt     time.Time
}

type Notifier interface {
	Send(ctx context.Context, d Draft) error
}

// Dispatcher sends drafts in the background, at most one per interval.
type Dispatcher struct {
	notifier Notifier
	limiter  *rate.Limiter
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(n Notifier, interval time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifier: n,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notify returns immediately. Delivery failures are logged; drafts arriving
// after Close are dropped.
func (d *Dispatcher) Notify(draft Draft) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher closed, dropping draft notification", zap.String("post_id", draft.PostID))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		if err := d.Deliver(d.ctx, draft); err != nil {
			d.logger.Error("Failed to send draft notification",
				zap.String("post_id", draft.PostID),
				zap.String("platform", draft.Platform),
				zap.Error(err))
		}
	}()
}

// Close stops accepting drafts and waits for queued ones to be sent. If ctx
// ends first the remaining deliveries are cancelled and ctx's error returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Deliver waits for the limiter and sends synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, draft Draft) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.notifier.Send(ctx, draft)
}

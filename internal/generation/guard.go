package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	workerpool "github.com/NamiraNet/voicepost/internal/worker"
	"go.uber.org/zap"
)

const DefaultGuardWorkers = 2

// Backend produces text for a prompt. Implementations should return promptly
// once ctx is done: the Guard can only stop waiting, it cannot stop the call.
type Backend interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

type BackendFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f BackendFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// Guard runs generations on its own small pool and bounds how long callers wait.
//
// On expiry the call's context is cancelled, but a backend that ignores it keeps
// running and keeps holding one of the Guard's workers until it returns. Enough
// such calls exhaust the pool and later requests time out while still queued.
type Guard struct {
	backend Backend
	pool    *workerpool.WorkerPool
	stats   *Stats
	logger  *zap.Logger
}

type guardOptions struct {
	workers      int
	pollInterval time.Duration
	stats        *Stats
	poolMetrics  *workerpool.Metrics
}

type GuardOption func(*guardOptions)

// WithWorkers sets how many backend calls may run at once.
func WithWorkers(n int) GuardOption {
	return func(o *guardOptions) { o.workers = n }
}

func WithPollInterval(d time.Duration) GuardOption {
	return func(o *guardOptions) { o.pollInterval = d }
}

// WithStats shares a Stats between guards or with the caller.
func WithStats(s *Stats) GuardOption {
	return func(o *guardOptions) { o.stats = s }
}

func WithPoolMetrics(m *workerpool.Metrics) GuardOption {
	return func(o *guardOptions) { o.poolMetrics = m }
}

func NewGuard(backend Backend, logger *zap.Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := guardOptions{workers: DefaultGuardWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = DefaultGuardWorkers
	}
	if o.stats == nil {
		o.stats = NewStats(nil)
	}

	var poolOpts []workerpool.Option
	if o.poolMetrics != nil {
		poolOpts = append(poolOpts, workerpool.WithMetrics(o.poolMetrics))
	}

	return &Guard{
		backend: backend,
		pool: workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
			Name:         "generation",
			WorkerCount:  o.workers,
			PollInterval: o.pollInterval,
		}, logger, poolOpts...),
		stats:  o.stats,
		logger: logger,
	}
}

type backendResult struct {
	text string
	err  error
}

// GenerateWithTimeout races one backend call against cfg.Timeout. The returned
// error is non-nil when cfg is invalid or the Guard's pool rejects the call;
// every attempt that starts yields exactly one Outcome and one counter increment.
func (g *Guard) GenerateWithTimeout(ctx context.Context, prompt string, cfg Config) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outcome, err := g.race(ctx, prompt, cfg)
	if err != nil {
		return nil, err
	}
	g.stats.Record(outcome)

	switch o := outcome.(type) {
	case Success:
		g.logger.Info("Generation succeeded",
			zap.String("tone", string(cfg.Tone)),
			zap.Duration("generation_time", o.GenerationTime),
			zap.Int("characters", o.CharacterCount))
	case Timeout:
		g.logger.Warn("Generation timed out",
			zap.String("tone", string(cfg.Tone)),
			zap.Duration("budget", o.Elapsed))
	case Failure:
		g.logger.Error("Generation failed",
			zap.String("tone", string(cfg.Tone)),
			zap.Error(o.Err))
	}
	return outcome, nil
}

// race uses callCtx as the only clock, so a backend that returns the deadline
// error and the budget expiring are the same event.
func (g *Guard) race(ctx context.Context, prompt string, cfg Config) (Outcome, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// buffered so an abandoned call can still deliver and exit
	done := make(chan backendResult, 1)
	err := g.pool.Submit(workerpool.NewJob("generate:"+string(cfg.Tone), cfg.Timeout, func() {
		text, err := g.backend.Generate(callCtx, prompt, cfg.backendOptions())
		done <- backendResult{text: text, err: err}
	}))
	if err != nil {
		return nil, fmt.Errorf("schedule generation: %w", err)
	}

	select {
	case res := <-done:
		if res.err == nil {
			return NewSuccess(res.text, cfg.Tone, time.Since(start)), nil
		}
		if budgetExpired(ctx, callCtx) {
			return Timeout{Elapsed: cfg.Timeout}, nil
		}
		return Failure{Err: res.err}, nil
	case <-callCtx.Done():
		if budgetExpired(ctx, callCtx) {
			return Timeout{Elapsed: cfg.Timeout}, nil
		}
		return Failure{Err: ctx.Err()}, nil
	}
}

// budgetExpired reports whether callCtx ended on its own deadline rather than
// because the caller's context did.
func budgetExpired(parent, callCtx context.Context) bool {
	return errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

// NewSuccess derives the word and character counts from text.
func NewSuccess(text string, tone Tone, elapsed time.Duration) Success {
	return Success{
		Text:           text,
		Tone:           tone,
		GenerationTime: elapsed,
		WordCount:      len(strings.Fields(text)),
		CharacterCount: utf8.RuneCountInString(text),
	}
}

func (g *Guard) Stats() StatsSnapshot {
	return g.stats.Snapshot()
}

func (g *Guard) PoolStats() workerpool.WorkerPoolStats {
	return g.pool.GetStats()
}

// Close waits for in-flight backend calls, abandoned ones included.
func (g *Guard) Close() {
	g.pool.Shutdown()
}

package generation_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/NamiraNet/voicepost/internal/generation"
	workerpool "github.com/NamiraNet/voicepost/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func newGuard(t *testing.T, backend generation.Backend, stats *generation.Stats) *generation.Guard {
	t.Helper()
	g := generation.NewGuard(backend, zaptest.NewLogger(t),
		generation.WithWorkers(2),
		generation.WithPollInterval(10*time.Millisecond),
		generation.WithStats(stats))
	t.Cleanup(g.Close)
	return g
}

func configWithTimeout(d time.Duration) generation.Config {
	cfg := generation.DefaultConfig()
	cfg.Timeout = d
	return cfg
}

// slowBackend takes five seconds unless its context ends first.
var slowBackend = generation.BackendFunc(func(ctx context.Context, _ string, _ generation.Options) (string, error) {
	select {
	case <-time.After(5 * time.Second):
		return "too late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
})

func TestGenerateWithTimeout_SlowCallTimesOut(t *testing.T) {
	g := newGuard(t, slowBackend, nil)

	start := time.Now()
	outcome, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	timeout, ok := outcome.(generation.Timeout)
	if !ok {
		t.Fatalf("expected Timeout outcome, got %#v", outcome)
	}
	if timeout.Elapsed != 10*time.Millisecond {
		t.Errorf("expected elapsed to equal the budget, got %v", timeout.Elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("caller waited %v for a 10ms budget", elapsed)
	}

	stats := g.Stats()
	if stats.Timeout != 1 || stats.Successful != 0 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestGenerateWithTimeout_SuccessReportsWallClock(t *testing.T) {
	backend := generation.BackendFunc(func(ctx context.Context, _ string, opts generation.Options) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "Launching our new podcast today #audio", nil
	})
	g := newGuard(t, backend, nil)

	start := time.Now()
	outcome, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(time.Second))
	measured := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	success, ok := outcome.(generation.Success)
	if !ok {
		t.Fatalf("expected Success, got %#v", outcome)
	}
	if success.Text != "Launching our new podcast today #audio" {
		t.Errorf("unexpected text %q", success.Text)
	}
	if success.WordCount != 6 || success.CharacterCount != 38 {
		t.Errorf("unexpected counts: %d words, %d chars", success.WordCount, success.CharacterCount)
	}
	if success.Tone != generation.ToneProfessional {
		t.Errorf("unexpected tone %s", success.Tone)
	}
	if success.GenerationTime < 50*time.Millisecond || success.GenerationTime > measured {
		t.Errorf("generation time %v outside [50ms, %v]", success.GenerationTime, measured)
	}
}

func TestGenerateWithTimeout_BackendErrorIsFailure(t *testing.T) {
	errModel := errors.New("model not loaded")
	g := newGuard(t, generation.BackendFunc(func(context.Context, string, generation.Options) (string, error) {
		return "", errModel
	}), nil)

	outcome, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failure, ok := outcome.(generation.Failure)
	if !ok || !errors.Is(failure.Err, errModel) {
		t.Fatalf("expected Failure wrapping model error, got %#v", outcome)
	}
	if g.Stats().Failed != 1 {
		t.Errorf("expected failed counter 1, got %d", g.Stats().Failed)
	}
}

func TestGenerateWithTimeout_RejectsNonPositiveTimeout(t *testing.T) {
	called := false
	g := newGuard(t, generation.BackendFunc(func(context.Context, string, generation.Options) (string, error) {
		called = true
		return "", nil
	}), nil)

	for _, d := range []time.Duration{0, -time.Second} {
		_, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(d))
		if !errors.Is(err, generation.ErrInvalidTimeout) {
			t.Errorf("timeout %v: expected ErrInvalidTimeout, got %v", d, err)
		}
	}
	if called {
		t.Error("backend called despite invalid config")
	}
	if g.Stats().TotalGenerated != 0 {
		t.Errorf("invalid configs must not count as attempts")
	}
}

func TestGenerateWithTimeout_PassesDeadlineToBackend(t *testing.T) {
	sawDeadline := make(chan bool, 1)
	g := newGuard(t, generation.BackendFunc(func(ctx context.Context, _ string, opts generation.Options) (string, error) {
		_, ok := ctx.Deadline()
		sawDeadline <- ok && opts.MaxTokens == generation.DefaultMaxLength
		return "ok", nil
	}), nil)

	if _, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !<-sawDeadline {
		t.Error("backend did not receive a deadline and the configured max tokens")
	}
}

func TestStats_RunningAverage(t *testing.T) {
	stats := generation.NewStats(nil)
	durations := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

	var sum float64
	for _, d := range durations {
		stats.RecordSuccess(d)
		sum += d.Seconds()
	}
	stats.RecordTimeout()
	stats.RecordFailure()

	snap := stats.Snapshot()
	want := sum / float64(len(durations))
	if math.Abs(snap.AverageGenerationTime-want) > 1e-9 || math.Abs(want-2.0) > 1e-9 {
		t.Errorf("expected average %.3f, got %.3f", want, snap.AverageGenerationTime)
	}
	if snap.TotalGenerated != 5 || snap.Successful != 3 || snap.Timeout != 1 || snap.Failed != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
}

func TestStats_ExportsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := generation.NewMetrics(reg, "voicepost")
	stats := generation.NewStats(metrics)

	stats.Record(generation.Success{GenerationTime: time.Second})
	stats.Record(generation.Timeout{Elapsed: time.Second})
	stats.Record(generation.Timeout{Elapsed: time.Second})

	if v := testutil.ToFloat64(metrics.Outcomes.WithLabelValues("timeout")); v != 2 {
		t.Errorf("expected 2 timeouts, got %v", v)
	}
	if v := testutil.ToFloat64(metrics.Outcomes.WithLabelValues("success")); v != 1 {
		t.Errorf("expected 1 success, got %v", v)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := generation.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Tone = "sarcastic"
	if err := cfg.Validate(); !errors.Is(err, generation.ErrUnknownTone) {
		t.Errorf("expected ErrUnknownTone, got %v", err)
	}

	cfg = generation.DefaultConfig()
	cfg.MinLength = cfg.MaxLength + 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected min length above max length to fail")
	}
}

func TestParseTone(t *testing.T) {
	tone, err := generation.ParseTone("  Witty ")
	if err != nil || tone != generation.ToneWitty {
		t.Errorf("expected witty, got %q, %v", tone, err)
	}
	if _, err := generation.ParseTone("grumpy"); !errors.Is(err, generation.ErrUnknownTone) {
		t.Errorf("expected ErrUnknownTone, got %v", err)
	}
}

func TestGenerateWithTimeout_ContextHonoringBackendAlwaysTimesOut(t *testing.T) {
	stats := generation.NewStats(nil)
	g := newGuard(t, slowBackend, stats)

	const attempts = 200
	for i := 0; i < attempts; i++ {
		outcome, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(time.Millisecond))
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if _, ok := outcome.(generation.Timeout); !ok {
			t.Fatalf("attempt %d: expected Timeout, got %#v", i, outcome)
		}
	}

	snap := stats.Snapshot()
	if snap.Timeout != attempts || snap.Failed != 0 {
		t.Errorf("expected %d timeouts and no failures, got %+v", attempts, snap)
	}
}

func TestGenerateWithTimeout_CallerCancelIsFailure(t *testing.T) {
	g := newGuard(t, slowBackend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := g.GenerateWithTimeout(ctx, "prompt", configWithTimeout(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failure, ok := outcome.(generation.Failure)
	if !ok || !errors.Is(failure.Err, context.Canceled) {
		t.Fatalf("expected Failure wrapping context.Canceled, got %#v", outcome)
	}
}

func TestGenerateWithTimeout_ClosedGuardIsNotCounted(t *testing.T) {
	stats := generation.NewStats(nil)
	g := newGuard(t, slowBackend, stats)
	g.Close()

	_, err := g.GenerateWithTimeout(context.Background(), "prompt", configWithTimeout(time.Second))
	if !errors.Is(err, workerpool.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if snap := stats.Snapshot(); snap.TotalGenerated != 0 {
		t.Errorf("rejected calls must not count as attempts, got %+v", snap)
	}
}

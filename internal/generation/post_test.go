package generation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/NamiraNet/voicepost/internal/content"
	"github.com/NamiraNet/voicepost/internal/generation"
	"go.uber.org/zap/zaptest"
)

type recordingBackend struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (b *recordingBackend) Generate(_ context.Context, prompt string, _ generation.Options) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, prompt)
	return b.reply, nil
}

func (b *recordingBackend) lastPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.prompts) == 0 {
		return ""
	}
	return b.prompts[len(b.prompts)-1]
}

func newPostGenerator(t *testing.T, backend generation.Backend) *generation.PostGenerator {
	t.Helper()
	return generation.NewPostGenerator(newGuard(t, backend, nil), zaptest.NewLogger(t))
}

func TestGeneratePost_UsesTonePromptAndPostProcesses(t *testing.T) {
	backend := &recordingBackend{reply: "Post: our episode covers remote work habits."}
	gen := newPostGenerator(t, backend)

	cfg := generation.DefaultConfig()
	cfg.Tone = generation.ToneCasual
	cfg.TargetAudience = "founders"
	cfg.KeyPoints = []string{"async updates", "focus time"}

	outcome, err := gen.GeneratePost(context.Background(), "  we talked about remote work  ", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	success, ok := outcome.(generation.Success)
	if !ok {
		t.Fatalf("expected Success, got %#v", outcome)
	}
	if success.Text != "Our episode covers remote work habits." {
		t.Errorf("unexpected post %q", success.Text)
	}

	prompt := backend.lastPrompt()
	for _, want := range []string{
		"casual, friendly social media post",
		"Content: we talked about remote work",
		"Include relevant hashtags.",
		"Use appropriate emojis.",
		"Target audience: founders.",
		"Key points to include: async updates, focus time.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGeneratePost_RejectsEmptyContent(t *testing.T) {
	gen := newPostGenerator(t, &recordingBackend{reply: "x"})
	_, err := gen.GeneratePost(context.Background(), "   ", generation.DefaultConfig())
	if !errors.Is(err, generation.ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestGeneratePost_TruncatesLongContent(t *testing.T) {
	backend := &recordingBackend{reply: "fine"}
	gen := newPostGenerator(t, backend)

	long := strings.Repeat("a", generation.MaxContentLength+500)
	if _, err := gen.GeneratePost(context.Background(), long, generation.DefaultConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(backend.lastPrompt(), strings.Repeat("a", generation.MaxContentLength+1)) {
		t.Error("content was not truncated before prompting")
	}
}

func TestGenerateForPlatform_AppliesLimitAndEmoji(t *testing.T) {
	backend := &recordingBackend{reply: strings.Repeat("word ", 100) + "<eos>"}
	gen := newPostGenerator(t, backend)

	cfg := generation.DefaultConfig()
	cfg.Tone = generation.ToneWitty

	outcome, err := gen.GenerateForPlatform(context.Background(), "ship faster", content.PlatformTwitter, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	success := outcome.(generation.Success)
	if n := utf8.RuneCountInString(success.Text); n > 280 {
		t.Errorf("twitter draft has %d characters", n)
	}
	if strings.Contains(success.Text, "<eos>") {
		t.Error("artifacts were not cleaned")
	}
	if !strings.HasPrefix(backend.lastPrompt(), "Create a witty tweet about: ship faster.") {
		t.Errorf("unexpected prompt %q", backend.lastPrompt())
	}
}

func TestGenerateForPlatform_UnknownTemplate(t *testing.T) {
	gen := newPostGenerator(t, &recordingBackend{reply: "x"})
	cfg := generation.DefaultConfig()
	cfg.Tone = generation.ToneUrgent

	_, err := gen.GenerateForPlatform(context.Background(), "text", content.PlatformLinkedIn, cfg)
	if !errors.Is(err, content.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestGenerateMultiple_OneOutcomePerTone(t *testing.T) {
	backend := &recordingBackend{reply: "a short reply"}
	gen := newPostGenerator(t, backend)

	tones := []generation.Tone{generation.ToneWitty, generation.ToneUrgent, "bogus"}
	outcomes := gen.GenerateMultiple(context.Background(), "content", tones, generation.DefaultConfig())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status() != generation.StatusSuccess || outcomes[1].Status() != generation.StatusSuccess {
		t.Errorf("expected first two to succeed: %#v", outcomes)
	}
	if outcomes[2].Status() != generation.StatusFailed {
		t.Errorf("expected unknown tone to fail, got %s", outcomes[2].Status())
	}
}

func TestPostProcess_TrimsOnWordBoundary(t *testing.T) {
	cfg := generation.DefaultConfig()
	cfg.MaxLength = 20
	cfg.MinLength = 0

	got := generation.PostProcess("here's a thought about building great things daily", cfg, nil)
	if utf8.RuneCountInString(got) > 20 {
		t.Errorf("expected at most 20 characters, got %d: %q", utf8.RuneCountInString(got), got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if !strings.HasPrefix(got, "Here") {
		t.Errorf("expected capitalised start, got %q", got)
	}
}

func TestPostProcess_StripsBoilerplate(t *testing.T) {
	cfg := generation.DefaultConfig()
	got := generation.PostProcess("Tweet: big news today!", cfg, nil)
	if got != "Big news today!" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestEnhancePrompt_NoExtras(t *testing.T) {
	cfg := generation.Config{Tone: generation.ToneProfessional, Timeout: time.Second}
	cfg.IncludeEmojis = true
	if got := generation.EnhancePrompt("base", cfg); got != "base" {
		t.Errorf("expected no enhancement for professional tone emojis, got %q", got)
	}
}

func TestPostProcess_TinyLimitsNeverOverflow(t *testing.T) {
	for _, limit := range []int{0, 1, 2, 3, 4, 6} {
		cfg := generation.DefaultConfig()
		cfg.MaxLength = limit
		cfg.MinLength = 0

		got := generation.PostProcess("unbelievably long opening word", cfg, nil)
		if n := utf8.RuneCountInString(got); n > limit {
			t.Errorf("limit %d: got %d characters %q", limit, n, got)
		}
	}
}

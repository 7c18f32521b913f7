package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/NamiraNet/voicepost/internal/content"
	"go.uber.org/zap"
)

const MaxContentLength = 2000

var tonePrompts = map[Tone]string{
	ToneWitty: `Create a witty and clever social media post from this content. Use humor, wordplay,
and smart observations. Keep it engaging and shareable. Make it sound natural and conversational.
Content: %s
Post:`,
	ToneProfessional: `Create a professional social media post from this content. Use clear, authoritative language.
Focus on key insights and valuable information. Keep it polished and credible.
Content: %s
Professional post:`,
	ToneMotivational: `Create an inspiring and motivational social media post from this content. Use uplifting language,
encourage action, and inspire your audience. Make it energetic and empowering.
Content: %s
Motivational post:`,
	ToneCasual: `Create a casual, friendly social media post from this content. Use conversational language,
be relatable and approachable. Make it feel like talking to a friend.
Content: %s
Casual post:`,
	ToneEducational: `Create an educational social media post from this content. Focus on teaching and informing.
Use clear explanations and highlight key learning points. Make it informative yet engaging.
Content: %s
Educational post:`,
	ToneHumorous: `Create a funny and entertaining social media post from this content. Use humor, jokes,
and entertaining observations. Make people smile or laugh while sharing the message.
Content: %s
Funny post:`,
	ToneInspirational: `Create an inspirational social media post from this content. Focus on hope, dreams,
and positive transformation. Use uplifting and encouraging language.
Content: %s
Inspirational post:`,
	ToneUrgent: `Create an urgent, action-oriented social media post from this content. Create a sense
of importance and immediacy. Use compelling language that motivates quick action.
Content: %s
Urgent post:`,
}

var boilerplatePhrases = []string{
	"Here's a", "Here is a", "This is a", "Check out this",
	"In this post", "This post", "Social media post:",
	"Post:", "Tweet:", "Facebook post:", "Instagram post:",
}

// PostGenerator turns transcript text into post drafts through a Guard.
type PostGenerator struct {
	guard  *Guard
	logger *zap.Logger
}

func NewPostGenerator(guard *Guard, logger *zap.Logger) *PostGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostGenerator{guard: guard, logger: logger}
}

// GeneratePost builds a tone prompt for text and post-processes a successful
// draft. Timeout and Failure outcomes are returned unchanged.
func (p *PostGenerator) GeneratePost(ctx context.Context, text string, cfg Config) (Outcome, error) {
	text, err := prepareContent(text, p.logger)
	if err != nil {
		return nil, err
	}
	template, ok := tonePrompts[cfg.Tone]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTone, cfg.Tone)
	}

	prompt := EnhancePrompt(fmt.Sprintf(template, text), cfg)
	return p.run(ctx, prompt, cfg, func(s string) string { return PostProcess(s, cfg, p.logger) })
}

// GenerateForPlatform uses the platform template for cfg.Tone and trims the draft
// to the platform's character limit.
func (p *PostGenerator) GenerateForPlatform(ctx context.Context, text, platform string, cfg Config) (Outcome, error) {
	text, err := prepareContent(text, p.logger)
	if err != nil {
		return nil, err
	}
	prompt, err := content.Prompt(platform, string(cfg.Tone), text)
	if err != nil {
		return nil, err
	}
	if limit, ok := content.CharacterLimit(platform); ok {
		cfg.MaxLength = limit
		if cfg.MinLength > limit {
			cfg.MinLength = 0
		}
	}

	return p.run(ctx, prompt, cfg, func(s string) string {
		s = content.CleanGeneratedText(s)
		if cfg.IncludeEmojis {
			s = content.AddEmojis(s, platform)
		}
		return content.FormatForPlatform(s, platform)
	})
}

// GenerateMultiple generates one draft per tone, in order. A tone whose attempt
// cannot start is reported as a Failure in its slot.
func (p *PostGenerator) GenerateMultiple(ctx context.Context, text string, tones []Tone, base Config) []Outcome {
	outcomes := make([]Outcome, 0, len(tones))
	for _, tone := range tones {
		cfg := base
		cfg.Tone = tone
		outcome, err := p.GeneratePost(ctx, text, cfg)
		if err != nil {
			p.logger.Error("Failed to generate post", zap.String("tone", string(tone)), zap.Error(err))
			outcome = Failure{Err: err}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *PostGenerator) run(ctx context.Context, prompt string, cfg Config, finish func(string) string) (Outcome, error) {
	start := time.Now()
	p.logger.Info("Generating post", zap.String("tone", string(cfg.Tone)))

	outcome, err := p.guard.GenerateWithTimeout(ctx, prompt, cfg)
	if err != nil {
		return nil, err
	}
	if s, ok := outcome.(Success); ok {
		return NewSuccess(finish(s.Text), cfg.Tone, time.Since(start)), nil
	}
	return outcome, nil
}

func prepareContent(text string, logger *zap.Logger) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(text) > MaxContentLength {
		text = string([]rune(text)[:MaxContentLength]) + "..."
		logger.Warn("Content truncated", zap.Int("max_characters", MaxContentLength))
	}
	return text, nil
}

// EnhancePrompt appends the optional instructions cfg asks for.
func EnhancePrompt(prompt string, cfg Config) string {
	var extras []string
	if cfg.IncludeHashtags {
		extras = append(extras, "Include relevant hashtags.")
	}
	if cfg.IncludeEmojis {
		switch cfg.Tone {
		case ToneCasual, ToneHumorous, ToneMotivational:
			extras = append(extras, "Use appropriate emojis.")
		}
	}
	if cfg.CallToAction {
		extras = append(extras, "End with a clear call-to-action.")
	}
	if cfg.TargetAudience != "" {
		extras = append(extras, fmt.Sprintf("Target audience: %s.", cfg.TargetAudience))
	}
	if len(cfg.KeyPoints) > 0 {
		extras = append(extras, fmt.Sprintf("Key points to include: %s.", strings.Join(cfg.KeyPoints, ", ")))
	}
	if len(extras) == 0 {
		return prompt
	}
	return prompt + " " + strings.Join(extras, " ")
}

// PostProcess strips model boilerplate, capitalises the first letter and trims
// to cfg.MaxLength on a word boundary. The result never exceeds MaxLength runes.
func PostProcess(text string, cfg Config, logger *zap.Logger) string {
	if text == "" {
		return text
	}
	for _, phrase := range boilerplatePhrases {
		text = strings.TrimSpace(strings.ReplaceAll(text, phrase, ""))
	}
	text = capitalize(text)

	if utf8.RuneCountInString(text) > cfg.MaxLength {
		text = trimToWords(text, cfg.MaxLength)
	}

	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < cfg.MinLength && logger != nil {
		logger.Warn("Generated text too short", zap.Int("characters", n), zap.Int("min_length", cfg.MinLength))
	}
	return text
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// trimToWords expects text longer than limit runes. Limits too small for an
// ellipsis cut text mid-word instead.
func trimToWords(text string, limit int) string {
	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return string([]rune(text)[:max(limit, 0)])
	}
	budget := limit - len(ellipsis)

	var kept []string
	length := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if length > 0 {
			n++
		}
		if length+n > budget {
			break
		}
		kept = append(kept, word)
		length += n
	}

	out := strings.Join(kept, " ")
	if strings.HasSuffix(out, ".") || strings.HasSuffix(out, "!") || strings.HasSuffix(out, "?") {
		return out
	}
	return out + ellipsis
}

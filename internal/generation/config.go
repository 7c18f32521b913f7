package generation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Tone string

const (
	ToneWitty         Tone = "witty"
	ToneProfessional  Tone = "professional"
	ToneMotivational  Tone = "motivational"
	ToneCasual        Tone = "casual"
	ToneEducational   Tone = "educational"
	ToneHumorous      Tone = "humorous"
	ToneInspirational Tone = "inspirational"
	ToneUrgent        Tone = "urgent"
)

var Tones = []Tone{
	ToneWitty, ToneProfessional, ToneMotivational, ToneCasual,
	ToneEducational, ToneHumorous, ToneInspirational, ToneUrgent,
}

const (
	DefaultMaxLength = 280
	DefaultMinLength = 50
	DefaultTimeout   = 30 * time.Second
)

var (
	ErrInvalidTimeout = errors.New("generation timeout must be positive")
	ErrUnknownTone    = errors.New("unknown tone")
	ErrEmptyContent   = errors.New("content cannot be empty")
)

// ParseTone accepts any casing and surrounding whitespace.
func ParseTone(s string) (Tone, error) {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tones {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTone, s)
}

// Config controls a single generation attempt. It is passed by value.
type Config struct {
	Tone            Tone
	MaxLength       int
	MinLength       int
	IncludeHashtags bool
	IncludeEmojis   bool
	CallToAction    bool
	TargetAudience  string
	KeyPoints       []string
	Timeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		Tone:            ToneProfessional,
		MaxLength:       DefaultMaxLength,
		MinLength:       DefaultMinLength,
		IncludeHashtags: true,
		IncludeEmojis:   true,
		Timeout:         DefaultTimeout,
	}
}

// Validate fails fast on settings that would otherwise be silently reinterpreted.
// A zero timeout is an error, not "no timeout".
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTimeout, c.Timeout)
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("max length must be positive: got %d", c.MaxLength)
	}
	if c.MinLength < 0 || c.MinLength > c.MaxLength {
		return fmt.Errorf("min length %d out of range for max length %d", c.MinLength, c.MaxLength)
	}
	if _, err := ParseTone(string(c.Tone)); err != nil {
		return err
	}
	return nil
}

// Options are the sampling parameters handed to a Backend.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func (c Config) backendOptions() Options {
	return Options{
		MaxTokens:   c.MaxLength,
		Temperature: 0.8,
		TopP:        0.9,
	}
}

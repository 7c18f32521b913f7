package content

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPrompt(t *testing.T) {
	got, err := Prompt("LinkedIn", "Professional", "quarterly results")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Create a professional LinkedIn post about: quarterly results.") {
		t.Errorf("unexpected prompt %q", got)
	}
}

func TestPrompt_Missing(t *testing.T) {
	tests := []struct {
		platform string
		tone     string
	}{
		{"myspace", "casual"},
		{"twitter", "urgent"},
	}
	for _, tt := range tests {
		if _, err := Prompt(tt.platform, tt.tone, "x"); !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("%s/%s: expected ErrTemplateNotFound, got %v", tt.platform, tt.tone, err)
		}
	}
}

func TestPlatforms(t *testing.T) {
	want := []string{PlatformInstagram, PlatformLinkedIn, PlatformTwitter}
	if got := Platforms(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFormatForPlatform(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := FormatForPlatform(long, PlatformTwitter)
	if n := utf8.RuneCountInString(got); n != 280 {
		t.Errorf("expected 280 runes, got %d", n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if FormatForPlatform(long, "unknown") != long {
		t.Error("unknown platform should be left unchanged")
	}
	if !WithinLimit(long, PlatformLinkedIn) || WithinLimit(long, PlatformTwitter) {
		t.Error("unexpected WithinLimit results")
	}
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("Big day #launch for #go_lang fans # nothing")
	want := []string{"#launch", "#go_lang"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCleanGeneratedText(t *testing.T) {
	got := CleanGeneratedText("  hello<eos>   world</s>\n\n<pad>")
	if got != "hello world" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestAddEmojis(t *testing.T) {
	if got := AddEmojis("caption", PlatformInstagram); got == "caption" || !strings.HasPrefix(got, "caption ") {
		t.Errorf("expected an emoji suffix, got %q", got)
	}
	if got := AddEmojis("tweet", PlatformTwitter); got != "tweet" {
		t.Errorf("twitter text should be unchanged, got %q", got)
	}
}

func TestPlatformEmoji_Distinct(t *testing.T) {
	seen := map[string]string{}
	for _, p := range append(Platforms(), "other") {
		e := PlatformEmoji(p)
		if e == "" {
			t.Errorf("%s: empty emoji", p)
		}
		if prev, ok := seen[e]; ok {
			t.Errorf("%s and %s share emoji %q", prev, p, e)
		}
		seen[e] = p
	}
}

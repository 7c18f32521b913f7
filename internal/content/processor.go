package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/enescakir/emoji"
)

var characterLimits = map[string]int{
	PlatformLinkedIn:  3000,
	PlatformTwitter:   280,
	PlatformInstagram: 2200,
}

var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	artifacts      = []string{"&lt;&gt;", "<eos>", "</s>", "<pad>", "#%^&*"}
)

func CharacterLimit(platform string) (int, bool) {
	limit, ok := characterLimits[strings.ToLower(platform)]
	return limit, ok
}

// FormatForPlatform truncates text to the platform limit, counted in runes.
// Unknown platforms get text back unchanged.
func FormatForPlatform(text, platform string) string {
	if WithinLimit(text, platform) {
		return text
	}
	limit, _ := CharacterLimit(platform)
	return string([]rune(text)[:limit])
}

func WithinLimit(text, platform string) bool {
	limit, ok := CharacterLimit(platform)
	if !ok {
		return true
	}
	return utf8.RuneCountInString(text) <= limit
}

func ExtractHashtags(text string) []string {
	return hashtagPattern.FindAllString(text, -1)
}

func AddEmojis(text, platform string) string {
	if strings.ToLower(platform) == PlatformInstagram {
		return text + " " + emoji.SmilingFaceWithSmilingEyes.String()
	}
	return text
}

// PlatformEmoji is a marker used when listing drafts.
func PlatformEmoji(platform string) string {
	switch strings.ToLower(platform) {
	case PlatformLinkedIn:
		return emoji.Briefcase.String()
	case PlatformTwitter:
		return emoji.HighVoltage.String()
	case PlatformInstagram:
		return emoji.Camera.String()
	default:
		return emoji.Rocket.String()
	}
}

// CleanGeneratedText removes model artifacts and collapses whitespace.
func CleanGeneratedText(text string) string {
	for _, a := range artifacts {
		text = strings.ReplaceAll(text, a, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

package content

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrTemplateNotFound = errors.New("template not found")

const (
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
)

var platformTemplates = map[string]map[string]string{
	PlatformLinkedIn: {
		"professional": "Create a professional LinkedIn post about: %s. Use business language, include insights, and add 2-3 relevant hashtags. Keep it engaging and valuable.",
		"casual":       "Write a casual but professional LinkedIn update about: %s. Use friendly tone, personal touches, and 2-3 hashtags. Make it conversational.",
		"witty":        "Create an engaging LinkedIn post with personality about: %s. Add humor where appropriate, keep it professional, and include 2-3 hashtags.",
		"motivational": "Write an inspiring LinkedIn post about: %s. Use motivational language, call-to-action, and 2-3 hashtags. Make it uplifting.",
	},
	PlatformTwitter: {
		"professional": "Create a professional tweet about: %s. Keep under 280 characters, use 1-2 hashtags, make it concise and valuable.",
		"casual":       "Write a casual tweet about: %s. Keep under 280 characters, use friendly tone, 1-2 hashtags, make it conversational.",
		"witty":        "Create a witty tweet about: %s. Keep under 280 characters, add humor, use 1-2 hashtags, make it engaging.",
		"motivational": "Write an inspiring tweet about: %s. Keep under 280 characters, use motivational tone, 1-2 hashtags, include call-to-action.",
	},
	PlatformInstagram: {
		"professional": "Create a professional Instagram caption about: %s. Use storytelling, include emojis, add 5-7 hashtags, make it engaging.",
		"casual":       "Write a casual Instagram caption about: %s. Use friendly tone, include emojis, add 5-7 hashtags, make it personal.",
		"witty":        "Create an engaging Instagram caption about: %s. Add humor, use emojis, include 5-7 hashtags, make it fun.",
		"motivational": "Write an inspiring Instagram caption about: %s. Use motivational tone, emojis, 5-7 hashtags, include call-to-action.",
	},
}

// Template returns the raw template for platform and tone, with a single %s verb
// where the content goes.
func Template(platform, tone string) (string, error) {
	tones, ok := platformTemplates[strings.ToLower(platform)]
	if !ok {
		return "", fmt.Errorf("%w: unknown platform %q", ErrTemplateNotFound, platform)
	}
	tmpl, ok := tones[strings.ToLower(tone)]
	if !ok {
		return "", fmt.Errorf("%w: platform %q has no %q tone", ErrTemplateNotFound, platform, tone)
	}
	return tmpl, nil
}

func Prompt(platform, tone, text string) (string, error) {
	tmpl, err := Template(platform, tone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(tmpl, text), nil
}

func Platforms() []string {
	platforms := make([]string, 0, len(platformTemplates))
	for p := range platformTemplates {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/NamiraNet/voicepost/internal/content"
	"github.com/enescakir/emoji"
)

const (
	DefaultTelegramURL = "https://api.telegram.org"

	// Telegram rejects messages above 4096 characters.
	maxMessageLength = 4096
)

const DefaultTemplate = `{{platformEmoji .Platform}} <b>New {{.Platform}} draft</b> ({{toneEmoji .Tone}} {{.Tone}})

{{escape .Text}}

<code>{{.PostID}}</code>`

type Telegram struct {
	BotToken string
	Channel  string
	BaseURL  string
	Client   *http.Client
	tmpl     *template.Template
}

func NewTelegram(botToken, channel, tmpl string, client *http.Client) (*Telegram, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if client == nil {
		client = http.DefaultClient
	}
	parsed, err := template.New("telegram").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Telegram{
		BotToken: botToken,
		Channel:  channel,
		BaseURL:  DefaultTelegramURL,
		Client:   client,
		tmpl:     parsed,
	}, nil
}

var funcMap = template.FuncMap{
	"platformEmoji": content.PlatformEmoji,
	"toneEmoji": func(tone string) string {
		switch tone {
		case "witty", "humorous":
			return emoji.FaceWithTearsOfJoy.String()
		case "motivational", "inspirational":
			return emoji.Fire.String()
		case "urgent":
			return emoji.Warning.String()
		case "educational":
			return emoji.Books.String()
		default:
			return emoji.Memo.String()
		}
	},
	"escape": html.EscapeString,
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Render(d Draft) (string, error) {
	var message bytes.Buffer
	if err := t.tmpl.Execute(&message, d); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	text := message.String()
	if utf8.RuneCountInString(text) > maxMessageLength {
		text = string([]rune(text)[:maxMessageLength])
	}
	return text, nil
}

func (t *Telegram) Send(ctx context.Context, d Draft) error {
	text, err := t.Render(d)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(telegramMessage{
		ChatID:    t.Channel,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(t.BaseURL, "/")+"/bot"+t.BotToken+"/sendMessage",
		bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned non-200 status code: %d", resp.StatusCode)
	}
	return nil
}

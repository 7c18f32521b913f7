package model

import (
	"context"
	"errors"
	"strings"

	"github.com/NamiraNet/voicepost/internal/generation"
)

// ChatClient generates text through an OpenAI-compatible chat completions
// endpoint (Ollama, LM Studio, vLLM).
type ChatClient struct {
	endpoint
	model string
}

var _ generation.Backend = (*ChatClient)(nil)

func NewChatClient(url, model string, opts ...ClientOption) *ChatClient {
	o := applyOptions(opts)
	return &ChatClient{endpoint: newEndpoint(url, o.httpClient), model: model}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Name() string { return c.model }
func (c *ChatClient) Kind() Kind { return KindText }

// Generate sends prompt as a single user message. The request carries ctx, so an
// expired generation budget aborts the HTTP call.
func (c *ChatClient) Generate(ctx context.Context, prompt string, opts generation.Options) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/v1/chat/completions", "chat completion", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("LLM returned empty content")
	}
	return text, nil
}

func (c *ChatClient) Ping(ctx context.Context) error {
	return c.ping(ctx, c.model)
}

// Package openai calls an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements domain.ModelClient on go-openai.
type Client struct {
	api  *goopenai.Client
	opts Options
}

// New creates a client. An empty BaseURL keeps the library default.
func New(opts Options) *Client {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &Client{api: goopenai.NewClientWithConfig(cfg), opts: opts}
}

// Invoke sends a system and a user message and requests a JSON object
// answer. Failures wrap domain.ErrModelInvocationFailed.
func (c *Client) Invoke(ctx context.Context, instructions, content string) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, 2)
	if instructions != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: instructions})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: content})

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:          c.opts.Model,
		Messages:       msgs,
		Temperature:    c.opts.Temperature,
		TopP:           c.opts.TopP,
		MaxTokens:      c.opts.MaxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", fmt.Errorf("op=openai.Invoke: %w: %w", domain.ErrModelInvocationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("op=openai.Invoke: %w: no choices", domain.ErrModelInvocationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

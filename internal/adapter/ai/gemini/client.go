// Package gemini calls the Gemini generateContent REST endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// DefaultBaseURL is the public Generative Language API.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Options configures a Client.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
	// Timeout bounds the HTTP exchange; zero leaves it to the caller's context.
	Timeout time.Duration
}

// Client implements domain.ModelClient for Gemini.
type Client struct {
	opts Options
	hc   *http.Client
}

// New creates a Gemini client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("Gemini %s %s", r.Method, r.URL.Host)
		}),
	)
	return &Client{opts: opts, hc: &http.Client{Timeout: opts.Timeout, Transport: transport}}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	TopK             int     `json:"topK,omitempty"`
	TopP             float32 `json:"topP,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Invoke sends one generateContent request and returns the concatenated text
// of the first candidate. Transport, status and empty-answer failures wrap
// domain.ErrModelInvocationFailed.
func (c *Client) Invoke(ctx context.Context, instructions, userContent string) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: userContent}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.opts.Temperature,
			TopK:             c.opts.TopK,
			TopP:             c.opts.TopP,
			MaxOutputTokens:  c.opts.MaxOutputTokens,
			ResponseMimeType: "application/json",
		},
	}
	if instructions != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: instructions}}}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("op=gemini.Invoke: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.opts.BaseURL, url.PathEscape(c.opts.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("op=gemini.Invoke: %w: %v", domain.ErrModelInvocationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.opts.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=gemini.Invoke: %w: %w", domain.ErrModelInvocationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	lg := observability.LoggerFromContext(ctx)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		lg.Warn("gemini non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.opts.Model),
			slog.String("body", string(snippet)))
		return "", fmt.Errorf("op=gemini.Invoke: %w: status %d", domain.ErrModelInvocationFailed, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("op=gemini.Invoke: %w: decode: %v", domain.ErrModelInvocationFailed, err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("op=gemini.Invoke: %w: no candidates (block reason %q)", domain.ErrModelInvocationFailed, out.PromptFeedback.BlockReason)
	}
	cand := out.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	if cand.FinishReason == "MAX_TOKENS" {
		lg.Warn("gemini output truncated", slog.String("model", c.opts.Model), slog.Int("chars", sb.Len()))
	}
	return sb.String(), nil
}

// Package tika provides Apache Tika integration for text extraction.
//
// Documents are sent to the recursive metadata endpoint so the plain text
// and the page count come back in one round trip. Line structure is kept
// because blank lines drive page segmentation downstream.
package tika

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/pkg/textx"
)

const (
	contentKey = "X-TIKA:content"
	// page count keys in the order they are trusted
	pagesKeyXMP  = "xmpTPg:NPages"
	pagesKeyMeta = "meta:page-count"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// See: https://cwiki.apache.org/confluence/display/TIKA/TikaServer for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.TextExtractor = (*Client)(nil)

// New constructs a Tika client. A zero timeout falls back to 60s; large PDFs
// take a while to parse.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9998"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "Tika " + r.Method + " " + r.URL.Path
				}),
			),
		},
	}
}

// Extract uploads data to PUT /rmeta/text and returns the sanitized text of
// the container document with its reported page count (0 when unknown).
func (c *Client) Extract(ctx context.Context, data []byte, mimeType string) (domain.Extraction, error) {
	var out domain.Extraction
	err := observability.ObserveCall(ctx, observability.DependencyTika, "extract", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/rmeta/text", bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if mimeType != "" {
			req.Header.Set("Content-Type", mimeType)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: tika status %d", domain.ErrUnsupportedFormat, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("tika status %d", resp.StatusCode)
		}

		var docs []map[string]any
		if err := json.NewDecoder(io.LimitReader(resp.Body, 512<<20)).Decode(&docs); err != nil {
			return fmt.Errorf("decode rmeta: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}
		text, _ := docs[0][contentKey].(string)
		out = domain.Extraction{
			Text:      textx.SanitizeText(text),
			PageCount: pageCount(docs[0]),
		}
		return nil
	})
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("op=tika.Extract: %w", err)
	}
	return out, nil
}

// Ping checks GET /version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("tika status %d", resp.StatusCode)
}

// pageCount reads the page count from metadata. Tika reports metadata values
// as strings, or arrays of strings when a key repeats.
func pageCount(meta map[string]any) int {
	for _, key := range []string{pagesKeyXMP, pagesKeyMeta} {
		if n := toInt(meta[key]); n > 0 {
			return n
		}
	}
	return 0
}

func toInt(v any) int {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int(t)
	case []any:
		if len(t) > 0 {
			return toInt(t[0])
		}
	}
	return 0
}

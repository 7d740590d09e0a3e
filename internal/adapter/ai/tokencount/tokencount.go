// Package tokencount estimates prompt sizes in tokens.
//
// Encodings are loaded from the BPE ranks embedded by tiktoken-go-loader so
// counting never reaches the network. Gemini does not publish a tiktoken
// encoding; cl100k_base is used as an approximation for every model that has
// no exact match.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

var loaderOnce sync.Once

func useOfflineLoader() {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
}

// Counter counts tokens per model, caching one encoding per model family.
type Counter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a Counter backed by the offline BPE loader.
func NewCounter() *Counter {
	useOfflineLoader()
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	key := family(model)
	c.mu.RLock()
	enc, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[key]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(key)
	if err != nil {
		slog.Debug("falling back to default encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	c.cache[key] = enc
	return enc, nil
}

// family maps provider model IDs to names tiktoken knows.
func family(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "gpt-4o"
	case strings.HasPrefix(m, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		return "gpt-4"
	}
}

// Count returns the number of tokens of text under model's encoding.
func (c *Counter) Count(text, model string) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountPrompt counts an instruction block plus a content block. When no
// encoding is available it falls back to roughly four bytes per token.
func (c *Counter) CountPrompt(instructions, content, model string) int {
	enc, err := c.encoding(model)
	if err != nil {
		slog.Warn("token count unavailable, using estimate", slog.String("model", model), slog.Any("error", err))
		return (len(instructions) + len(content)) / 4
	}
	return len(enc.Encode(instructions, nil, nil)) + len(enc.Encode(content, nil, nil))
}

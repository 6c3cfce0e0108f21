// Package tokencount provides token counting for outbound prompts.
//
// It uses tiktoken-go to approximate the provider's tokenizer so the
// analysis adapter can refuse oversized prompts before spending a call.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting.
type Counter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc != nil {
		return c.enc, nil
	}
	// cl100k_base is a close enough approximation for Gemini-family
	// tokenizers; the limit check only needs the right order of magnitude.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	c.enc = enc
	return enc, nil
}

// CountTokens counts tokens in text. When the encoding cannot be loaded it
// falls back to a rough 4-chars-per-token estimate instead of failing the
// pipeline.
func (c *Counter) CountTokens(text string) int {
	enc, err := c.encoding()
	if err != nil {
		slog.Warn("token encoding unavailable, using estimate", slog.Any("error", err))
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountTokensDefault uses the default counter.
func CountTokensDefault(text string) int {
	return DefaultCounter.CountTokens(text)
}

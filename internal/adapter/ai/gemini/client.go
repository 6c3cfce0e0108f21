// Package gemini implements a text generator backed by the Google
// Generative Language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
)

// Client calls the generateContent endpoint over plain HTTP.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client with the configured timeout.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.GeminiTimeout},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
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

// The analysis prompt carries user-submitted business text; filtering is
// disabled so the provider does not silently drop legitimate finance
// vocabulary.
var safetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// Generate sends prompt to the model and returns the raw candidate text.
// Transient upstream failures are retried with exponential backoff inside
// the call; terminal failures surface immediately.
func (c *Client) Generate(ctx domain.Context, prompt string) (string, error) {
	if c.cfg.GeminiAPIKey == "" {
		return "", fmt.Errorf("op=gemini.generate: GEMINI_API_KEY missing: %w", domain.ErrConfigMissing)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.5,
			MaxOutputTokens: 8192,
		},
		SafetySettings: safetySettings,
	})
	if err != nil {
		return "", fmt.Errorf("op=gemini.generate: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(c.cfg.GeminiBaseURL, "/"), c.cfg.GeminiModel, c.cfg.GeminiAPIKey)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * time.Second
	expo.MaxInterval = 20 * time.Second
	expo.MaxElapsedTime = 2 * c.cfg.GeminiTimeout
	if c.cfg.IsTest() {
		expo.InitialInterval = 10 * time.Millisecond
		expo.MaxElapsedTime = time.Second
	}

	var out string
	op := func() error {
		text, err := c.generateOnce(ctx, url, body)
		if err != nil {
			if errors.Is(err, domain.ErrUpstreamTransient) || errors.Is(err, domain.ErrUpstreamTimeout) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = text
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", fmt.Errorf("op=gemini.generate: %w", err)
	}
	return out, nil
}

func (c *Client) generateOnce(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	observability.ObserveUpstream("gemini", "generate_content", time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		slog.Warn("gemini transient failure",
			slog.Int("status", resp.StatusCode),
			slog.String("body", snippet(raw, 200)))
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstreamTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamTerminal, resp.StatusCode, snippet(raw, 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamTerminal, err)
	}
	if len(gr.Candidates) == 0 {
		reason := gr.PromptFeedback.BlockReason
		if reason == "" {
			reason = "no candidates returned"
		}
		return "", fmt.Errorf("%w: %s", domain.ErrUpstreamTerminal, reason)
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

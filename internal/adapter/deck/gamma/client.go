// Package gamma implements the presentation-generation client for the
// Gamma public API (v0.2).
package gamma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valorize-app/valorize/internal/adapter/observability"
	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
)

// Client talks to /v0.2/generations. One call per method; polling policy
// lives in the pipeline stage.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createRequest struct {
	InputText   string      `json:"inputText"`
	Format      string      `json:"format"`
	TextMode    string      `json:"textMode"`
	TextOptions textOptions `json:"textOptions"`
}

type textOptions struct {
	Language string `json:"language"`
}

type createResponse struct {
	GenerationID string `json:"generationId"`
}

type statusResponse struct {
	Status   string `json:"status"`
	GammaURL string `json:"gammaUrl"`
}

// CreateGeneration starts a presentation generation from the deck prompt
// and returns the provider's generation id.
func (c *Client) CreateGeneration(ctx domain.Context, inputText string) (string, error) {
	if c.cfg.GammaAPIKey == "" {
		return "", fmt.Errorf("op=gamma.create: GAMMA_API_KEY missing: %w", domain.ErrConfigMissing)
	}

	body, err := json.Marshal(createRequest{
		InputText:   inputText,
		Format:      "presentation",
		TextMode:    "generate",
		TextOptions: textOptions{Language: "pt-br"},
	})
	if err != nil {
		return "", fmt.Errorf("op=gamma.create: %w", err)
	}

	raw, status, err := c.do(ctx, http.MethodPost, c.baseURL()+"/v0.2/generations", body, "create_generation")
	if err != nil {
		return "", fmt.Errorf("op=gamma.create: %w", err)
	}
	if err := classifyStatus(status, raw); err != nil {
		return "", fmt.Errorf("op=gamma.create: %w", err)
	}

	var cr createResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("op=gamma.create: decode: %v: %w", err, domain.ErrSchemaInvalid)
	}
	if cr.GenerationID == "" {
		return "", fmt.Errorf("op=gamma.create: response without generationId: %w", domain.ErrSchemaInvalid)
	}
	return cr.GenerationID, nil
}

// GetGeneration polls one generation.
func (c *Client) GetGeneration(ctx domain.Context, id string) (domain.DeckGeneration, error) {
	if c.cfg.GammaAPIKey == "" {
		return domain.DeckGeneration{}, fmt.Errorf("op=gamma.get: GAMMA_API_KEY missing: %w", domain.ErrConfigMissing)
	}

	raw, status, err := c.do(ctx, http.MethodGet, c.baseURL()+"/v0.2/generations/"+id, nil, "get_generation")
	if err != nil {
		return domain.DeckGeneration{}, fmt.Errorf("op=gamma.get: %w", err)
	}
	if err := classifyStatus(status, raw); err != nil {
		return domain.DeckGeneration{}, fmt.Errorf("op=gamma.get: %w", err)
	}

	var sr statusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return domain.DeckGeneration{}, fmt.Errorf("op=gamma.get: decode: %v: %w", err, domain.ErrSchemaInvalid)
	}
	return domain.DeckGeneration{Status: sr.Status, URL: sr.GammaURL}, nil
}

func (c *Client) baseURL() string {
	return strings.TrimSuffix(c.cfg.GammaBaseURL, "/")
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, operation string) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-API-KEY", c.cfg.GammaAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	observability.ObserveUpstream("gamma", operation, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTransient, err)
	}
	return raw, resp.StatusCode, nil
}

// classifyStatus maps the provider's HTTP status to the error taxonomy:
// 2xx ok, 4xx terminal (retrying an invalid request cannot help), 429 and
// 5xx transient.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrUpstreamTransient, status)
	default:
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamTerminal, status, msg)
	}
}

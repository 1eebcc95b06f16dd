package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrEmptyContent = errors.New("generator returned empty content")

type generateResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// HTTPGenerator calls an external generation service:
//
//	POST {endpoint}  {"contentType","topic","tone","length"} -> {"content"}
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger

	mu     sync.RWMutex
	health Health
}

func NewHTTPGenerator(cfg Config, logger *zap.SugaredLogger) *HTTPGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPGenerator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		logger:   logger,
		health:   Health{Healthy: true},
	}
}

func (g *HTTPGenerator) Name() string {
	return "http"
}

func (g *HTTPGenerator) Health() Health {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.health
}

// Check fails while the most recent generation attempt failed.
func (g *HTTPGenerator) Check(context.Context) error {
	h := g.Health()
	if h.Healthy {
		return nil
	}
	return fmt.Errorf("last generation failed: %s", h.LastError)
}

func (g *HTTPGenerator) updateHealth(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.health.Healthy = err == nil
	if err == nil {
		g.health.LastSuccess = time.Now()
		g.health.LastError = ""
	} else {
		g.health.LastError = err.Error()
	}
}

// Generate blocks on the rate limiter, then calls the service.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	text, err := g.do(ctx, req)
	g.updateHealth(err)
	if err != nil {
		g.logger.Warnw("Content generation failed", "topic", req.Topic, "type", req.Type, "error", err)
		return "", err
	}

	g.logger.Debugw("Generated content", "topic", req.Topic, "type", req.Type, "chars", len(text))
	return text, nil
}

func (g *HTTPGenerator) do(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator API error: %d %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("generator error: %s", out.Error)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyContent
	}
	return out.Content, nil
}

package content

import (
	"context"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"go.uber.org/zap"
)

// Tones and lengths understood by the generators
const (
	ToneProfessional = "professional"
	ToneCasual       = "casual"
	ToneFriendly     = "friendly"

	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// Request describes the copy to generate.
type Request struct {
	Type   calendar.ContentType `json:"contentType"`
	Topic  string               `json:"topic"`
	Tone   string               `json:"tone"`
	Length string               `json:"length"`
}

// Health is the last known state of a generator backend.
type Health struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"lastError,omitempty"`
	LastSuccess time.Time `json:"lastSuccess"`
}

// Config selects and tunes a generator.
type Config struct {
	Endpoint          string        // generation service URL; empty selects the template generator
	APIKey            string        // sent as a bearer token
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // client side rate limit, <= 0 disables it
	Burst             int
}

// Generator is what New returns; both implementations satisfy it.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	// Check reports whether the backend is usable, for readiness probes.
	Check(ctx context.Context) error
}

// New returns an HTTP generator when an endpoint is configured and the
// template generator otherwise.
func New(cfg Config, logger *zap.SugaredLogger) Generator {
	if cfg.Endpoint == "" {
		logger.Infow("No content generation endpoint configured; using template generator")
		return NewTemplateGenerator()
	}
	logger.Infow("Using HTTP content generator", "endpoint", cfg.Endpoint, "rps", cfg.RequestsPerSecond)
	return NewHTTPGenerator(cfg, logger)
}

package publish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"go.uber.org/zap"
)

var ErrNoPublisher = errors.New("no publisher configured for platform")

// Channel delivers content to one destination.
type Channel interface {
	Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error
	Name() string
}

// Registry routes content to the channel registered for its platform.
// Platform names are matched case-insensitively.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel // lower-cased platform -> channel
	fallback Channel
	strict   bool
	logger   *zap.SugaredLogger
}

// NewRegistry creates a registry. Unknown platforms go to fallback unless
// strict is set, in which case they fail with ErrNoPublisher.
func NewRegistry(fallback Channel, strict bool, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		fallback: fallback,
		strict:   strict,
		logger:   logger,
	}
}

func (r *Registry) Register(platform string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[normalize(platform)] = ch
}

// Platforms lists registered platform keys.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channels))
	for p := range r.channels {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) channelFor(platform string) (Channel, error) {
	r.mu.RLock()
	ch, ok := r.channels[normalize(platform)]
	r.mu.RUnlock()

	if ok {
		return ch, nil
	}
	if r.strict || r.fallback == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoPublisher, platform)
	}
	return r.fallback, nil
}

func (r *Registry) Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error {
	ch, err := r.channelFor(platform)
	if err != nil {
		return err
	}

	if err := ch.Publish(ctx, platform, entry); err != nil {
		return fmt.Errorf("%s: %w", ch.Name(), err)
	}
	r.logger.Debugw("Content delivered", "platform", platform, "channel", ch.Name(), "contentId", entry.ID)
	return nil
}

func normalize(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// LogPublisher only logs deliveries. It stands in for platforms without a
// configured integration.
type LogPublisher struct {
	logger *zap.SugaredLogger
}

func NewLogPublisher(logger *zap.SugaredLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string {
	return "log"
}

func (p *LogPublisher) Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Infow("Publishing content",
		"platform", platform,
		"contentId", entry.ID,
		"title", entry.Title,
		"type", entry.Type,
		"words", entry.WordCount,
	)
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keys
const (
	KeyActivityLog  = "cp:activity:log"
	ChannelActivity = "cp:activity:stream"
)

// DefaultActivityLimit bounds the retained activity log.
const DefaultActivityLimit = 100

// Activity kinds
const (
	KindEventCreated   = "event_created"
	KindEventPublished = "event_published"
	KindFailure        = "failure"
	KindSweep          = "sweep"
	KindControl        = "control"
)

// Activity is one entry of the automation activity log.
type Activity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"`
	EventID   string    `json:"eventId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// ActivityFeed keeps the most recent activity entries and broadcasts new
// ones. It uses Redis when reachable and an in-memory ring otherwise.
type ActivityFeed struct {
	client *redis.Client
	limit  int

	// in-memory mode
	mu        sync.RWMutex
	entries   []Activity // oldest first
	pubsubHub *PubSubHub

	logger *zap.SugaredLogger
}

// NewActivityFeed connects to Redis at addr. An empty addr or a failed
// ping selects the in-memory mode.
func NewActivityFeed(addr string, limit int, logger *zap.SugaredLogger) *ActivityFeed {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	if addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Infow("Activity feed using redis", "addr", addr, "limit", limit)
			return &ActivityFeed{client: client, limit: limit, logger: logger}
		}
		logger.Warnw("Redis unavailable; using in-memory activity feed", "addr", addr, "error", err)
		client.Close()
	}

	return NewMemoryActivityFeed(limit, logger)
}

// NewMemoryActivityFeed creates a feed that never touches Redis.
func NewMemoryActivityFeed(limit int, logger *zap.SugaredLogger) *ActivityFeed {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return &ActivityFeed{
		limit:     limit,
		entries:   make([]Activity, 0, limit),
		pubsubHub: NewPubSubHub(),
		logger:    logger,
	}
}

// Record appends an entry, trims the log to its limit and publishes the
// entry to live subscribers. ID and Time are filled in when empty.
func (f *ActivityFeed) Record(ctx context.Context, a Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Time.IsZero() {
		a.Time = time.Now().UTC()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("activity marshal error: %w", err)
	}

	if f.client != nil {
		pipe := f.client.TxPipeline()
		pipe.LPush(ctx, KeyActivityLog, data)
		pipe.LTrim(ctx, KeyActivityLog, 0, int64(f.limit-1))
		pipe.Publish(ctx, ChannelActivity, data)
		if _, err := pipe.Exec(ctx); err != nil {
			f.logger.Errorw("Activity record error", "kind", a.Kind, "error", err)
			return fmt.Errorf("activity record error: %w", err)
		}
		return nil
	}

	f.mu.Lock()
	f.entries = append(f.entries, a)
	if over := len(f.entries) - f.limit; over > 0 {
		f.entries = append(f.entries[:0], f.entries[over:]...)
	}
	f.mu.Unlock()

	f.pubsubHub.Publish(ChannelActivity, string(data))
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 means the whole log.
func (f *ActivityFeed) Recent(ctx context.Context, n int) ([]Activity, error) {
	if n <= 0 || n > f.limit {
		n = f.limit
	}

	if f.client != nil {
		raw, err := f.client.LRange(ctx, KeyActivityLog, 0, int64(n-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("activity read error: %w", err)
		}
		out := make([]Activity, 0, len(raw))
		for _, item := range raw {
			var a Activity
			if err := json.Unmarshal([]byte(item), &a); err != nil {
				f.logger.Warnw("Skipping malformed activity entry", "error", err)
				continue
			}
			out = append(out, a)
		}
		return out, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]Activity, 0, n)
	for i := len(f.entries) - 1; i >= len(f.entries)-n; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

// Subscribe streams new entries until ctx is done, then closes the
// returned channel.
func (f *ActivityFeed) Subscribe(ctx context.Context) <-chan Activity {
	out := make(chan Activity, 16)

	if f.client != nil {
		pubsub := f.client.Subscribe(ctx, ChannelActivity)
		go func() {
			defer close(out)
			defer pubsub.Close()

			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					f.forward(ctx, out, msg.Payload)
				}
			}
		}()
		return out
	}

	sub := f.pubsubHub.Subscribe(ctx, ChannelActivity)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.forward(ctx, out, msg.Payload)
			}
		}
	}()
	return out
}

func (f *ActivityFeed) forward(ctx context.Context, out chan<- Activity, payload string) {
	var a Activity
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		f.logger.Warnw("Dropping malformed activity message", "error", err)
		return
	}
	select {
	case out <- a:
	case <-ctx.Done():
	}
}

// IsInMemoryMode returns true if the feed is not backed by Redis
func (f *ActivityFeed) IsInMemoryMode() bool {
	return f.client == nil
}

func (f *ActivityFeed) Ping(ctx context.Context) error {
	if f.client != nil {
		return f.client.Ping(ctx).Err()
	}
	return nil
}

func (f *ActivityFeed) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

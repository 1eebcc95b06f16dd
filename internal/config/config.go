package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"CP_ENV"`
	LogLevel string `mapstructure:"CP_LOG_LEVEL"`
	HTTPAddr string `mapstructure:"CP_HTTP_ADDR"`

	Store     StoreConfig     `mapstructure:",squash"`
	Activity  ActivityConfig  `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Poster    PosterConfig    `mapstructure:",squash"`
	Generator GeneratorConfig `mapstructure:",squash"`
	Publisher PublisherConfig `mapstructure:",squash"`
	Security  SecurityConfig  `mapstructure:",squash"`
}

type StoreConfig struct {
	Type        string `mapstructure:"CP_STORE_TYPE"` // "memory", "postgres"
	PostgresDSN string `mapstructure:"CP_POSTGRES_DSN"`
	MaxConns    int32  `mapstructure:"CP_POSTGRES_MAX_CONNS"`
}

type ActivityConfig struct {
	RedisAddr string `mapstructure:"CP_REDIS_ADDR"` // empty keeps the feed in memory
	Limit     int    `mapstructure:"CP_ACTIVITY_LIMIT"`
}

type SchedulerConfig struct {
	AutoStart        bool   `mapstructure:"CP_SCHEDULER_AUTOSTART"`
	IntervalDays     int    `mapstructure:"CP_SCHEDULER_INTERVAL_DAYS"`
	LookaheadDays    int    `mapstructure:"CP_SCHEDULER_LOOKAHEAD_DAYS"`
	EventHour        int    `mapstructure:"CP_SCHEDULER_EVENT_HOUR"`
	Timezone         string `mapstructure:"CP_SCHEDULER_TIMEZONE"`
	DefaultPlatform  string `mapstructure:"CP_SCHEDULER_DEFAULT_PLATFORM"`
	SpecialDatesFile string `mapstructure:"CP_SPECIAL_DATES_FILE"`
}

type PosterConfig struct {
	AutoStart       bool   `mapstructure:"CP_POSTER_AUTOSTART"`
	IntervalMinutes int    `mapstructure:"CP_POSTER_INTERVAL_MINUTES"`
	Tone            string `mapstructure:"CP_POSTER_TONE"`
	Length          string `mapstructure:"CP_POSTER_LENGTH"`
	ConfirmDelivery bool   `mapstructure:"CP_POSTER_CONFIRM_DELIVERY"`
}

type GeneratorConfig struct {
	URL               string        `mapstructure:"CP_GENERATOR_URL"` // empty uses the template generator
	APIKey            string        `mapstructure:"CP_GENERATOR_API_KEY"`
	Timeout           time.Duration `mapstructure:"CP_GENERATOR_TIMEOUT"`
	RequestsPerSecond float64       `mapstructure:"CP_GENERATOR_RPS"`
	Burst             int           `mapstructure:"CP_GENERATOR_BURST"`
}

type PublisherConfig struct {
	// Webhooks maps platform name to webhook URL. Parsed from
	// CP_PUBLISH_WEBHOOKS="Facebook=https://...,LinkedIn=https://...".
	Webhooks map[string]string `mapstructure:"-"`
	Strict   bool              `mapstructure:"CP_PUBLISH_STRICT"`
	Timeout  time.Duration     `mapstructure:"CP_PUBLISH_TIMEOUT"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"CP_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"CP_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("CP_ENV", "dev")
	v.SetDefault("CP_LOG_LEVEL", "")
	v.SetDefault("CP_HTTP_ADDR", ":8080")
	v.SetDefault("CP_STORE_TYPE", "memory")
	v.SetDefault("CP_POSTGRES_DSN", "")
	v.SetDefault("CP_POSTGRES_MAX_CONNS", 10)
	v.SetDefault("CP_REDIS_ADDR", "")
	v.SetDefault("CP_ACTIVITY_LIMIT", 100)
	v.SetDefault("CP_SCHEDULER_AUTOSTART", false)
	v.SetDefault("CP_SCHEDULER_INTERVAL_DAYS", 1)
	v.SetDefault("CP_SCHEDULER_LOOKAHEAD_DAYS", 14)
	v.SetDefault("CP_SCHEDULER_EVENT_HOUR", 9)
	v.SetDefault("CP_SCHEDULER_TIMEZONE", "Local")
	v.SetDefault("CP_SCHEDULER_DEFAULT_PLATFORM", "Facebook")
	v.SetDefault("CP_SPECIAL_DATES_FILE", "")
	v.SetDefault("CP_POSTER_AUTOSTART", false)
	v.SetDefault("CP_POSTER_INTERVAL_MINUTES", 10)
	v.SetDefault("CP_POSTER_TONE", "professional")
	v.SetDefault("CP_POSTER_LENGTH", "medium")
	v.SetDefault("CP_POSTER_CONFIRM_DELIVERY", true)
	v.SetDefault("CP_GENERATOR_URL", "")
	v.SetDefault("CP_GENERATOR_API_KEY", "")
	v.SetDefault("CP_GENERATOR_TIMEOUT", "30s")
	v.SetDefault("CP_GENERATOR_RPS", 2.0)
	v.SetDefault("CP_GENERATOR_BURST", 4)
	v.SetDefault("CP_PUBLISH_STRICT", false)
	v.SetDefault("CP_PUBLISH_TIMEOUT", "10s")
	v.SetDefault("CP_RATE_LIMIT_RPM", 120)
	v.SetDefault("CP_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	if origins := v.GetString("CP_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("CP_CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	webhooks, err := parseWebhooks(os.Getenv("CP_PUBLISH_WEBHOOKS"))
	if err != nil {
		return nil, fmt.Errorf("invalid CP_PUBLISH_WEBHOOKS: %w", err)
	}
	cfg.Publisher.Webhooks = webhooks

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("CP_POSTGRES_DSN is required when CP_STORE_TYPE=postgres")
		}
	default:
		return fmt.Errorf("invalid CP_STORE_TYPE %q (must be memory or postgres)", c.Store.Type)
	}
	if c.Scheduler.EventHour < 0 || c.Scheduler.EventHour > 23 {
		return fmt.Errorf("CP_SCHEDULER_EVENT_HOUR must be between 0 and 23")
	}
	if c.Scheduler.IntervalDays < 0 || c.Scheduler.IntervalDays > 365 {
		return fmt.Errorf("CP_SCHEDULER_INTERVAL_DAYS must be between 0 and 365")
	}
	if c.Poster.IntervalMinutes < 0 || c.Poster.IntervalMinutes > 525600 {
		return fmt.Errorf("CP_POSTER_INTERVAL_MINUTES must be between 0 and 525600")
	}
	if c.Scheduler.LookaheadDays < 0 {
		return fmt.Errorf("CP_SCHEDULER_LOOKAHEAD_DAYS must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid CP_SCHEDULER_TIMEZONE: %w", err)
	}
	if c.Activity.Limit <= 0 {
		return fmt.Errorf("CP_ACTIVITY_LIMIT must be positive")
	}
	return nil
}

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseWebhooks(raw string) (map[string]string, error) {
	hooks := make(map[string]string)
	for _, pair := range splitList(raw) {
		platform, url, ok := strings.Cut(pair, "=")
		platform, url = strings.TrimSpace(platform), strings.TrimSpace(url)
		if !ok || platform == "" || url == "" {
			return nil, fmt.Errorf("expected platform=url, got %q", pair)
		}
		hooks[platform] = url
	}
	return hooks, nil
}

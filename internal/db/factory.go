package db

import (
	"context"
	"fmt"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/calendar/memory"
	"github.com/contentpilot/contentpilot-backend/internal/calendar/postgres"
	"go.uber.org/zap"
)

// Config holds event store configuration
type Config struct {
	Type        string // "memory" or "postgres"
	DSN         string // Postgres connection string
	UseInMemory bool   // Force in-memory usage
	MaxConns    int32  // Pool size for postgres
}

// NewEventStore creates the calendar store selected by cfg. A postgres
// type without a DSN falls back to memory so local runs need no database.
func NewEventStore(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (calendar.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.UseInMemory || (cfg.Type == "postgres" && cfg.DSN == "") {
		logger.Infow("Using in-memory event store", "requestedType", cfg.Type)
		return memory.NewStore(), nil
	}

	switch cfg.Type {
	case "memory":
		logger.Infow("Using in-memory event store")
		return memory.NewStore(), nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres event store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported event store type: %s", cfg.Type)
	}
}

// MustNewEventStore creates an event store and panics on error
func MustNewEventStore(ctx context.Context, cfg Config, logger *zap.SugaredLogger) calendar.Store {
	store, err := NewEventStore(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create event store: %v", err))
	}
	return store
}

package automation

import (
	"context"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/content"
	"github.com/contentpilot/contentpilot-backend/internal/store"
)

// EventStore is the slice of calendar persistence the engine needs.
type EventStore interface {
	ListUsers(ctx context.Context) ([]string, error)
	ListEvents(ctx context.Context, userID string) ([]calendar.CalendarEvent, error)
	CreateEvent(ctx context.Context, event calendar.CalendarEvent) (calendar.CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (calendar.CalendarEvent, error)
	GetContent(ctx context.Context, id string) (calendar.ContentEntry, error)
	CreateContent(ctx context.Context, entry calendar.ContentEntry) (calendar.ContentEntry, error)
}

// ContentGenerator produces copy for an event.
type ContentGenerator interface {
	Generate(ctx context.Context, req content.Request) (string, error)
}

// Publisher delivers content to a platform. An empty platform means the
// default channel.
type Publisher interface {
	Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error
}

// ActivityRecorder receives activity entries. Recording is best effort.
type ActivityRecorder interface {
	Record(ctx context.Context, a store.Activity) error
	Recent(ctx context.Context, n int) ([]store.Activity, error)
}

// Metrics is implemented by *metrics.Metrics.
type Metrics interface {
	RecordSweep(ctx context.Context, component string, d time.Duration)
	RecordEventsCreated(ctx context.Context, n int)
	RecordEventPublished(ctx context.Context, platform string)
	RecordFailure(ctx context.Context, component, kind string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSweep(context.Context, string, time.Duration) {}
func (nopMetrics) RecordEventsCreated(context.Context, int)          {}
func (nopMetrics) RecordEventPublished(context.Context, string)      {}
func (nopMetrics) RecordFailure(context.Context, string, string)     {}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, store.Activity) error { return nil }
func (nopRecorder) Recent(context.Context, int) ([]store.Activity, error) {
	return nil, nil
}

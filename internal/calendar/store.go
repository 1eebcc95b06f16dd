package calendar

import "context"

// Store is the full persistence surface for calendar events and content.
// Backends live in the memory and postgres sub-packages.
type Store interface {
	ListUsers(ctx context.Context) ([]string, error)
	ListEvents(ctx context.Context, userID string) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, event CalendarEvent) (CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (CalendarEvent, error)
	GetContent(ctx context.Context, id string) (ContentEntry, error)
	CreateContent(ctx context.Context, entry ContentEntry) (ContentEntry, error)

	// Ping checks backend connectivity
	Ping(ctx context.Context) error
	Close() error
}

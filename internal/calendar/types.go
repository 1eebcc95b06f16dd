package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventStatus is the lifecycle state of a calendar event.
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusReady     EventStatus = "ready"
	StatusPublished EventStatus = "published"
	StatusCancelled EventStatus = "cancelled"
)

// ContentType classifies generated copy by the channel it is written for.
type ContentType string

const (
	ContentSocial ContentType = "social"
	ContentEmail  ContentType = "email"
	ContentBlog   ContentType = "blog"
	ContentAd     ContentType = "ad"
)

// ContentStatus values for ContentEntry.Status
const (
	ContentStatusDraft     = "draft"
	ContentStatusGenerated = "generated"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidEvent      = errors.New("invalid calendar event")
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusPublished, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s EventStatus) Terminal() bool {
	return s == StatusPublished || s == StatusCancelled
}

// CanAdvanceTo reports whether moving from s to next respects the
// forward-only lifecycle pending -> ready -> published, with cancelled
// reachable from any non-terminal state. Re-asserting the current status
// is allowed.
func (s EventStatus) CanAdvanceTo(next EventStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusCancelled:
		return true
	case StatusReady:
		return s == StatusPending
	case StatusPublished:
		return s == StatusReady
	default:
		return false
	}
}

// CalendarEvent is a scheduled marketing moment owned by a single user.
type CalendarEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     *time.Time  `json:"endDate,omitempty"`
	Platform    string      `json:"platform,omitempty"`
	Status      EventStatus `json:"status"`
	ContentID   string      `json:"contentId,omitempty"`
	ImageID     string      `json:"imageId,omitempty"`
	UserID      string      `json:"userId"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// IsDue reports whether the event should be picked up for publishing at now.
func (e CalendarEvent) IsDue(now time.Time) bool {
	return e.Status == StatusReady && !e.StartDate.After(now)
}

// Validate checks the invariants a store enforces on create.
func (e CalendarEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidEvent)
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidEvent)
	}
	if e.EndDate != nil && !e.EndDate.After(e.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidEvent)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
	}
	return nil
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Platform    *string      `json:"platform,omitempty"`
	Status      *EventStatus `json:"status,omitempty"`
	ContentID   *string      `json:"contentId,omitempty"`
	ImageID     *string      `json:"imageId,omitempty"`
}

// Apply returns a copy of e with the patch applied. It fails if the patch
// would move the status backwards.
func (p EventPatch) Apply(e CalendarEvent) (CalendarEvent, error) {
	if p.Status != nil {
		if !e.Status.CanAdvanceTo(*p.Status) {
			return e, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, *p.Status)
		}
		e.Status = *p.Status
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Platform != nil {
		e.Platform = *p.Platform
	}
	if p.ContentID != nil {
		e.ContentID = *p.ContentID
	}
	if p.ImageID != nil {
		e.ImageID = *p.ImageID
	}
	return e, nil
}

// StatusPatch is shorthand for a patch that only moves the status.
func StatusPatch(s EventStatus) EventPatch {
	return EventPatch{Status: &s}
}

// ContentEntry is a piece of copy, usually generated for an event.
type ContentEntry struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Type      ContentType `json:"type"`
	Status    string      `json:"status"`
	UserID    string      `json:"userId"`
	WordCount int         `json:"wordCount"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

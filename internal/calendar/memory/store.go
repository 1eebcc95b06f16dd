package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/google/uuid"
)

// Store is an in-memory calendar.Store. It is the default backend for
// development and the backend used by tests.
type Store struct {
	mu       sync.RWMutex
	events   map[string]calendar.CalendarEvent // eventID -> event
	byUser   map[string][]string               // userID -> eventIDs in insertion order
	contents map[string]calendar.ContentEntry  // contentID -> entry
	users    map[string]struct{}
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		events:   make(map[string]calendar.CalendarEvent),
		byUser:   make(map[string][]string),
		contents: make(map[string]calendar.ContentEntry),
		users:    make(map[string]struct{}),
		now:      time.Now,
	}
}

// AddUser registers a user that owns no events yet so the automation
// sweeps still visit it.
func (s *Store) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// ListUsers returns every known user, sorted.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.users))
	for id := range s.users {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// ListEvents returns a snapshot of the user's events ordered by start date.
func (s *Store) ListEvents(ctx context.Context, userID string) ([]calendar.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := s.byUser[userID]
	events := make([]calendar.CalendarEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, copyEvent(s.events[id]))
	}
	s.mu.RUnlock()

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartDate.Before(events[j].StartDate)
	})
	return events, nil
}

// CreateEvent assigns an id and creation time and stores the event.
func (s *Store) CreateEvent(ctx context.Context, event calendar.CalendarEvent) (calendar.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return calendar.CalendarEvent{}, err
	}
	if event.Status == "" {
		event.Status = calendar.StatusPending
	}
	if err := event.Validate(); err != nil {
		return calendar.CalendarEvent{}, err
	}

	event.ID = uuid.NewString()
	event.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.ID] = copyEvent(event)
	s.byUser[event.UserID] = append(s.byUser[event.UserID], event.ID)
	s.users[event.UserID] = struct{}{}

	return copyEvent(event), nil
}

// UpdateEvent applies a partial update. Status regressions are rejected.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (calendar.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return calendar.CalendarEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[id]
	if !ok {
		return calendar.CalendarEvent{}, fmt.Errorf("event %s: %w", id, calendar.ErrNotFound)
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return calendar.CalendarEvent{}, fmt.Errorf("event %s: %w", id, err)
	}

	s.events[id] = updated
	return copyEvent(updated), nil
}

// GetContent looks up a content entry by id.
func (s *Store) GetContent(ctx context.Context, id string) (calendar.ContentEntry, error) {
	if err := ctx.Err(); err != nil {
		return calendar.ContentEntry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.contents[id]
	if !ok {
		return calendar.ContentEntry{}, fmt.Errorf("content %s: %w", id, calendar.ErrNotFound)
	}
	return entry, nil
}

// CreateContent assigns an id and stores the entry. WordCount is derived
// from the body when not supplied.
func (s *Store) CreateContent(ctx context.Context, entry calendar.ContentEntry) (calendar.ContentEntry, error) {
	if err := ctx.Err(); err != nil {
		return calendar.ContentEntry{}, err
	}

	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	if entry.WordCount == 0 {
		entry.WordCount = calendar.CountWords(entry.Content)
	}
	if entry.Status == "" {
		entry.Status = calendar.ContentStatusDraft
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.contents[entry.ID] = entry
	if entry.UserID != "" {
		s.users[entry.UserID] = struct{}{}
	}
	return entry, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string]calendar.CalendarEvent)
	s.byUser = make(map[string][]string)
	s.contents = make(map[string]calendar.ContentEntry)
	s.users = make(map[string]struct{})
	return nil
}

func copyEvent(e calendar.CalendarEvent) calendar.CalendarEvent {
	if e.EndDate != nil {
		end := *e.EndDate
		e.EndDate = &end
	}
	return e
}

var _ calendar.Store = (*Store)(nil)

package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/calendar/memory"
	"github.com/contentpilot/contentpilot-backend/internal/content"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLogger = zap.NewNop().Sugar()

// faultyStore wraps the memory store and fails selected calls.
type faultyStore struct {
	*memory.Store

	mu            sync.Mutex
	listEventsErr map[string]error // userID -> error
	createErr     error
	listUsersErr  error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:         memory.NewStore(),
		listEventsErr: make(map[string]error),
	}
}

func (s *faultyStore) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	err := s.listUsersErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListUsers(ctx)
}

func (s *faultyStore) ListEvents(ctx context.Context, userID string) ([]calendar.CalendarEvent, error) {
	s.mu.Lock()
	err := s.listEventsErr[userID]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListEvents(ctx, userID)
}

func (s *faultyStore) CreateEvent(ctx context.Context, e calendar.CalendarEvent) (calendar.CalendarEvent, error) {
	s.mu.Lock()
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return calendar.CalendarEvent{}, err
	}
	return s.Store.CreateEvent(ctx, e)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req content.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error {
	args := m.Called(ctx, platform, entry)
	return args.Error(0)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustCreate(t *testing.T, s calendar.Store, e calendar.CalendarEvent) calendar.CalendarEvent {
	t.Helper()
	created, err := s.CreateEvent(context.Background(), e)
	require.NoError(t, err)
	return created
}

func findEvent(t *testing.T, s calendar.Store, userID, id string) calendar.CalendarEvent {
	t.Helper()
	events, err := s.ListEvents(context.Background(), userID)
	require.NoError(t, err)
	for _, e := range events {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("event %s not found for %s", id, userID)
	return calendar.CalendarEvent{}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	defer store.Close()

	start := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)

	t.Run("CreateAssignsIdentity", func(t *testing.T) {
		created, err := store.CreateEvent(ctx, calendar.CalendarEvent{
			Title:     "Independence Day",
			StartDate: start,
			UserID:    "alice",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, calendar.StatusPending, created.Status)
	})

	t.Run("CreateRejectsInvalid", func(t *testing.T) {
		_, err := store.CreateEvent(ctx, calendar.CalendarEvent{Title: "no user", StartDate: start})
		assert.ErrorIs(t, err, calendar.ErrInvalidEvent)
	})

	t.Run("ListIsPerUserAndSorted", func(t *testing.T) {
		_, err := store.CreateEvent(ctx, calendar.CalendarEvent{Title: "Earlier", StartDate: start.AddDate(0, 0, -3), UserID: "alice"})
		require.NoError(t, err)
		_, err = store.CreateEvent(ctx, calendar.CalendarEvent{Title: "Bob's", StartDate: start, UserID: "bob"})
		require.NoError(t, err)

		events, err := store.ListEvents(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "Earlier", events[0].Title)

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, users)
	})

	t.Run("UpdateForwardOnly", func(t *testing.T) {
		created, err := store.CreateEvent(ctx, calendar.CalendarEvent{
			Title:     "Launch",
			StartDate: start,
			UserID:    "carol",
			Status:    calendar.StatusReady,
		})
		require.NoError(t, err)

		updated, err := store.UpdateEvent(ctx, created.ID, calendar.StatusPatch(calendar.StatusPublished))
		require.NoError(t, err)
		assert.Equal(t, calendar.StatusPublished, updated.Status)

		_, err = store.UpdateEvent(ctx, created.ID, calendar.StatusPatch(calendar.StatusReady))
		assert.True(t, errors.Is(err, calendar.ErrInvalidTransition))

		_, err = store.UpdateEvent(ctx, "missing", calendar.StatusPatch(calendar.StatusReady))
		assert.True(t, errors.Is(err, calendar.ErrNotFound))
	})

	t.Run("ReturnedEventsAreCopies", func(t *testing.T) {
		end := start.Add(time.Hour)
		created, err := store.CreateEvent(ctx, calendar.CalendarEvent{
			Title: "Copy", StartDate: start, EndDate: &end, UserID: "dave",
		})
		require.NoError(t, err)

		*created.EndDate = end.Add(time.Hour)

		events, err := store.ListEvents(ctx, "dave")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, end, *events[0].EndDate)
	})
}

func TestStoreContent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	entry, err := store.CreateContent(ctx, calendar.ContentEntry{
		Title:   "Holiday post",
		Content: "Happy holidays from all of us",
		Type:    calendar.ContentSocial,
		UserID:  "erin",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 6, entry.WordCount)
	assert.Equal(t, calendar.ContentStatusDraft, entry.Status)

	got, err := store.GetContent(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = store.GetContent(ctx, "nope")
	assert.ErrorIs(t, err, calendar.ErrNotFound)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Contains(t, users, "erin")
}

func TestAddUserWithoutEvents(t *testing.T) {
	store := NewStore()
	store.AddUser("frank")

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"frank"}, users)
}

func TestCancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

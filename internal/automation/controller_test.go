package automation

import (
	"context"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/calendar/memory"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	controller *Controller
	store      *memory.Store
	feed       *store.ActivityFeed
	generator  *mockGenerator
	publisher  *mockPublisher
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	es := memory.NewStore()
	feed := store.NewMemoryActivityFeed(50, testLogger)
	gen := new(mockGenerator)
	pub := new(mockPublisher)

	cfg := DefaultSchedulerConfig()
	cfg.Location = time.UTC
	scheduler := NewScheduler(es, NewCatalog(), cfg, testLogger, WithClock(fixedClock(posterNow)), WithActivity(feed))
	poster := NewPoster(es, gen, pub, DefaultPosterConfig(), testLogger, WithClock(fixedClock(posterNow)), WithActivity(feed))

	c := NewController(scheduler, poster, es, feed, testLogger)
	t.Cleanup(func() {
		require.NoError(t, c.Shutdown(context.Background()))
	})

	return &controllerFixture{controller: c, store: es, feed: feed, generator: gen, publisher: pub}
}

func TestControllerRequiresTenant(t *testing.T) {
	ctx := context.Background()
	c := newControllerFixture(t).controller

	_, err := c.StartScheduler(ctx, "", 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.StopScheduler(ctx, " ")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.StartPoster(ctx, "", 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.StopPoster(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.AddSpecialDates(ctx, "", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, c.ForceCheck(ctx, ""), ErrUnauthorized)
	_, err = c.Status(ctx, "", 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.UpcomingSpecialDates("", 14)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.Activity(ctx, "", 10)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.False(t, c.scheduler.Running())
	assert.False(t, c.poster.Running())
}

func TestControllerStartStop(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)
	c := f.controller

	started, err := c.StartScheduler(ctx, "alice", 2)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = c.StartScheduler(ctx, "bob", 5)
	require.NoError(t, err)
	assert.False(t, started)

	started, err = c.StartPoster(ctx, "alice", 15)
	require.NoError(t, err)
	assert.True(t, started)

	st, err := c.Status(ctx, "alice", 10)
	require.NoError(t, err)
	assert.True(t, st.Scheduler.Running)
	assert.Equal(t, 2, st.Scheduler.Interval)
	assert.Equal(t, "days", st.Scheduler.Unit)
	assert.NotNil(t, st.Scheduler.NextRun)
	assert.True(t, st.Poster.Running)
	assert.Equal(t, 15, st.Poster.Interval)

	stopped, err := c.StopScheduler(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stopped)
	stopped, err = c.StopPoster(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stopped)

	st, err = c.Status(ctx, "alice", 10)
	require.NoError(t, err)
	assert.False(t, st.Scheduler.Running)
	assert.False(t, st.Poster.Running)
	assert.Nil(t, st.Poster.NextRun)

	var messages []string
	for _, a := range st.RecentActivity {
		if a.Kind == store.KindControl {
			messages = append(messages, a.Message)
		}
	}
	assert.Contains(t, messages, "Scheduler started, every 2 days")
	assert.Contains(t, messages, "Scheduler already running")
	assert.Contains(t, messages, "Poster stopped")
}

func TestControllerStatusCounts(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	mustCreate(t, f.store, calendar.CalendarEvent{Title: "draft", StartDate: posterNow.Add(time.Hour), Status: calendar.StatusPending, UserID: "alice"})
	mustCreate(t, f.store, calendar.CalendarEvent{Title: "later", StartDate: posterNow.Add(time.Hour), Status: calendar.StatusReady, UserID: "alice"})
	mustCreate(t, f.store, calendar.CalendarEvent{Title: "due", StartDate: posterNow.Add(-time.Hour), Status: calendar.StatusReady, UserID: "alice"})
	mustCreate(t, f.store, calendar.CalendarEvent{Title: "other tenant", StartDate: posterNow, Status: calendar.StatusReady, UserID: "bob"})

	st, err := f.controller.Status(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, st.PendingEvents)
	assert.Equal(t, 2, st.ReadyEvents)
	assert.Equal(t, 1, st.DueEvents)
	assert.NotNil(t, st.RecentActivity)
}

func TestControllerForceCheck(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	event := mustCreate(t, f.store, calendar.CalendarEvent{Title: "Independence Day", StartDate: posterNow.Add(-time.Hour), Status: calendar.StatusReady, Platform: "Facebook", UserID: "alice"})
	f.generator.On("Generate", mock.Anything, mock.Anything).Return("copy", nil)
	f.publisher.On("Publish", mock.Anything, "Facebook", mock.Anything).Return(nil)

	require.NoError(t, f.controller.ForceCheck(ctx, "alice"))
	assert.Eventually(t, func() bool {
		return findEvent(t, f.store, "alice", event.ID).Status == calendar.StatusPublished
	}, time.Second, 10*time.Millisecond)

	// a forced check does not start the periodic engine
	assert.False(t, f.controller.poster.Running())
}

func TestControllerSpecialDates(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t)

	n, err := f.controller.AddSpecialDates(ctx, "alice", []SpecialDateInput{
		{Date: "07-10", Name: "Company Anniversary", Platform: "LinkedIn"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	upcoming, err := f.controller.UpcomingSpecialDates("alice", 0)
	require.NoError(t, err)

	var names []string
	for _, o := range upcoming {
		names = append(names, o.Name)
	}
	// posterNow is July 4 10:00 UTC and the default lookahead is 14 days
	assert.Equal(t, []string{"Independence Day", "Company Anniversary"}, names)

	recent, err := f.controller.Activity(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Added 1 special dates", recent[0].Message)
}

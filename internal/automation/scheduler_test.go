package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/calendar/memory"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestScheduler(es EventStore, catalog *Catalog, now time.Time, opts ...Option) *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.Location = now.Location()
	opts = append([]Option{WithClock(fixedClock(now))}, opts...)
	return NewScheduler(es, catalog, cfg, testLogger, opts...)
}

func TestSchedulerIndependenceDay(t *testing.T) {
	ctx := context.Background()
	es := memory.NewStore()
	es.AddUser("alice")

	catalog := NewEmptyCatalog()
	catalog.Register("07-04", "Independence Day", "Fireworks", "Facebook")

	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(es, catalog, now)

	report := s.Sweep(ctx)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Failed)

	events, err := es.ListEvents(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Contains(t, e.Title, "Independence Day")
	assert.Equal(t, "Fireworks", e.Description)
	assert.Equal(t, time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC), e.StartDate.UTC())
	assert.Equal(t, calendar.StatusReady, e.Status)
	assert.Equal(t, "Facebook", e.Platform)
	assert.Empty(t, e.ContentID)
	assert.Empty(t, e.ImageID)

	// second run with the new event in the store creates nothing
	report = s.Sweep(ctx)
	assert.Zero(t, report.Created)

	events, err = es.ListEvents(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSchedulerIdempotentWithSeededCatalog(t *testing.T) {
	ctx := context.Background()
	es := memory.NewStore()
	es.AddUser("alice")
	es.AddUser("bob")

	now := time.Date(2025, 12, 20, 8, 0, 0, 0, time.UTC)
	s := newTestScheduler(es, NewCatalog(), now)

	first := s.Sweep(ctx)
	// 12-24, 12-25, 12-31 and 01-01 for each user
	assert.Equal(t, 8, first.Created)

	second := s.Sweep(ctx)
	assert.Zero(t, second.Created)
	assert.Equal(t, first.Scanned, second.Scanned)

	events, err := es.ListEvents(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "New Year's Day", events[3].Title)
	assert.Equal(t, 2026, events[3].StartDate.Year())
}

func TestSchedulerWindow(t *testing.T) {
	testCases := []struct {
		name   string
		now    time.Time
		create bool
	}{
		{"fourteen days before", time.Date(2025, 12, 11, 12, 0, 0, 0, time.UTC), true},
		{"fifteen days before", time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC), false},
		{"five days before", time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), true},
		{"on the day", time.Date(2025, 12, 25, 23, 0, 0, 0, time.UTC), true},
		{"day after", time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC), false},
		{"previous year boundary", time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			es := memory.NewStore()
			es.AddUser("u1")
			catalog := NewEmptyCatalog()
			catalog.Register("12-25", "Christmas Day", "", "Instagram")

			report := newTestScheduler(es, catalog, tc.now).Sweep(context.Background())
			if tc.create {
				assert.Equal(t, 1, report.Created)
			} else {
				assert.Zero(t, report.Created)
			}
		})
	}
}

func TestSchedulerLocalEventHour(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+9", 9*3600)
	es := memory.NewStore()
	es.AddUser("u1")

	catalog := NewEmptyCatalog()
	catalog.Register("10-31", "Halloween", "", "Instagram")

	// 20:00 UTC on Oct 30 is already Oct 31 in UTC+9
	now := time.Date(2025, 10, 30, 20, 0, 0, 0, time.UTC).In(loc)
	s := newTestScheduler(es, catalog, now)
	s.Sweep(ctx)

	events, err := es.ListEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	local := events[0].StartDate.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 0, local.Minute())
	assert.Equal(t, 31, local.Day())
}

func TestSchedulerAllPlatformUsesDefault(t *testing.T) {
	ctx := context.Background()
	es := memory.NewStore()
	es.AddUser("u1")

	catalog := NewEmptyCatalog()
	catalog.Register("11-29", "Black Friday", "", PlatformAll)

	now := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	cfg := DefaultSchedulerConfig()
	cfg.Location = time.UTC
	cfg.DefaultPlatform = "LinkedIn"
	s := NewScheduler(es, catalog, cfg, testLogger, WithClock(fixedClock(now)))
	s.Sweep(ctx)

	events, err := es.ListEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "LinkedIn", events[0].Platform)
}

func TestSchedulerRespectsEditedEvents(t *testing.T) {
	ctx := context.Background()
	es := memory.NewStore()

	mustCreate(t, es, calendar.CalendarEvent{
		Title:     "Independence Day Mega Sale",
		StartDate: time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC),
		Status:    calendar.StatusPending,
		UserID:    "alice",
	})
	mustCreate(t, es, calendar.CalendarEvent{
		Title:     "Fourth of July",
		StartDate: time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC),
		UserID:    "bob",
	})

	catalog := NewEmptyCatalog()
	catalog.Register("07-04", "Independence Day", "", "Facebook")

	report := newTestScheduler(es, catalog, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)).Sweep(ctx)
	assert.Equal(t, 1, report.Created)

	alice, err := es.ListEvents(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 1)

	bob, err := es.ListEvents(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bob, 2)
}

func TestSchedulerIsolatesUserFailures(t *testing.T) {
	ctx := context.Background()
	es := newFaultyStore()
	es.AddUser("broken")
	es.AddUser("healthy")
	es.listEventsErr["broken"] = errors.New("connection reset")

	feed := store.NewMemoryActivityFeed(50, testLogger)
	catalog := NewEmptyCatalog()
	catalog.Register("07-04", "Independence Day", "", "Facebook")

	s := newTestScheduler(es, catalog, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), WithActivity(feed))
	report := s.Sweep(ctx)

	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)

	healthy, err := es.ListEvents(ctx, "healthy")
	require.NoError(t, err)
	assert.Len(t, healthy, 1)

	recent, err := feed.Recent(ctx, 0)
	require.NoError(t, err)
	var failure *store.Activity
	for i := range recent {
		if recent[i].Kind == store.KindFailure {
			failure = &recent[i]
		}
	}
	require.NotNil(t, failure)
	assert.Equal(t, "broken", failure.UserID)
	assert.Contains(t, failure.Error, "connection reset")
}

func TestSchedulerCreateFailureContinues(t *testing.T) {
	ctx := context.Background()
	es := newFaultyStore()
	es.AddUser("u1")
	es.AddUser("u2")
	es.createErr = errors.New("disk full")

	now := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	report := newTestScheduler(es, NewCatalog(), now).Sweep(ctx)

	assert.Zero(t, report.Created)
	assert.Equal(t, 8, report.Failed)
}

func TestSchedulerListUsersFailure(t *testing.T) {
	es := newFaultyStore()
	es.listUsersErr = errors.New("unavailable")

	s := newTestScheduler(es, NewCatalog(), time.Now())
	report := s.Sweep(context.Background())

	assert.Equal(t, 1, report.Failed)
	require.NotNil(t, s.LastSweep())
	assert.Equal(t, 1, s.LastSweep().Failed)
}

func TestRegisterSpecialDates(t *testing.T) {
	s := newTestScheduler(memory.NewStore(), NewEmptyCatalog(), time.Now())

	n, err := s.RegisterSpecialDates([]SpecialDateInput{
		{Date: "03-08", Name: "Company Anniversary", Platform: "LinkedIn"},
		{Date: "13-45", Name: "Nonsense"},
		{Date: "05-05"},
	})
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDateKey)

	d, ok := s.Catalog().Lookup("03-08")
	require.True(t, ok)
	assert.Equal(t, "Company Anniversary", d.Name)
	_, ok = s.Catalog().Lookup("05-05")
	assert.False(t, ok)

	n, err = s.RegisterSpecialDates([]SpecialDateInput{{Date: "09-01", Name: "Back to School"}})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSchedulerStartStop(t *testing.T) {
	es := memory.NewStore()
	es.AddUser("u1")
	s := newTestScheduler(es, NewCatalog(), time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC))

	assert.False(t, s.Running())
	assert.Zero(t, s.IntervalDays())

	require.True(t, s.Start(0))
	assert.True(t, s.Running())
	assert.Equal(t, 1, s.IntervalDays())

	// the immediate sweep runs in the background
	assert.Eventually(t, func() bool { return s.LastSweep() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, s.LastSweep().Created)

	assert.False(t, s.Start(3))
	assert.Equal(t, 1, s.IntervalDays())

	assert.True(t, s.Stop())
	assert.False(t, s.Running())
	assert.False(t, s.Stop())

	require.True(t, s.Start(7))
	assert.Equal(t, 7, s.IntervalDays())
	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.Running())
}

func TestSchedulerStartCapsInterval(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewScheduler(memory.NewStore(), NewCatalog(), DefaultSchedulerConfig(), zap.New(core).Sugar())

	require.True(t, s.Start(200000))
	assert.Equal(t, MaxIntervalDays, s.IntervalDays())
	assert.Equal(t, 1, logs.FilterMessage("Scheduler interval capped").Len())

	assert.Eventually(t, func() bool { return s.LastSweep() != nil }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.NextRun().After(time.Now().Add(364 * 24 * time.Hour))
	}, time.Second, 10*time.Millisecond)

	assert.False(t, s.Start(1))
	ignored := logs.FilterMessage("Start ignored").All()
	require.Len(t, ignored, 1)
	assert.Equal(t, ErrAlreadyRunning.Error(), ignored[0].ContextMap()["error"])

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Zero(t, s.IntervalDays())
}

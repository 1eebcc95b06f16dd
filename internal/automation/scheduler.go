package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/jobs"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"go.uber.org/zap"
)

const componentScheduler = "scheduler"

// SchedulerConfig tunes the Event Scheduler.
type SchedulerConfig struct {
	LookaheadDays   int            // days after today to scan, inclusive
	EventHour       int            // local hour of created events
	DefaultPlatform string         // used for templates targeting every platform
	Location        *time.Location // calendar day boundaries; defaults to time.Local
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		LookaheadDays:   14,
		EventHour:       9,
		DefaultPlatform: "Facebook",
		Location:        time.Local,
	}
}

// SpecialDateInput is one entry of a bulk registration.
type SpecialDateInput struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Platform    string `json:"platform"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Users     int           `json:"users"`
	Scanned   int           `json:"scanned"`
	Created   int           `json:"created,omitempty"`
	Published int           `json:"published,omitempty"`
	Failed    int           `json:"failed"`
}

// Scheduler keeps every user's calendar populated with upcoming special
// dates.
type Scheduler struct {
	store    EventStore
	catalog  *Catalog
	config   SchedulerConfig
	activity ActivityRecorder
	metrics  Metrics
	logger   *zap.SugaredLogger
	now      func() time.Time

	loop *jobs.Periodic

	sweepMu   sync.Mutex
	reportMu  sync.RWMutex
	lastSweep *SweepReport
}

// Option configures the Scheduler and the Poster.
type Option func(*options)

type options struct {
	activity ActivityRecorder
	metrics  Metrics
	now      func() time.Time
	baseCtx  context.Context
}

// WithActivity records sweep outcomes to rec.
func WithActivity(rec ActivityRecorder) Option {
	return func(o *options) { o.activity = rec }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBaseContext sets the context periodic sweeps run under.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) { o.baseCtx = ctx }
}

func buildOptions(opts []Option) options {
	o := options{
		activity: nopRecorder{},
		metrics:  nopMetrics{},
		now:      time.Now,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// startLoop starts a sweep loop and logs why it did not start.
func startLoop(loop *jobs.Periodic, component string, interval time.Duration, logger *zap.SugaredLogger) bool {
	started, err := loop.Start(interval)
	if err != nil {
		logger.Errorw("Failed to start sweep loop", "component", component, "interval", interval.String(), "error", err)
		return false
	}
	if !started {
		logger.Debugw("Start ignored", "component", component, "error", ErrAlreadyRunning)
	}
	return started
}

func NewScheduler(es EventStore, catalog *Catalog, cfg SchedulerConfig, logger *zap.SugaredLogger, opts ...Option) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.LookaheadDays < 0 {
		cfg.LookaheadDays = def.LookaheadDays
	}
	if cfg.EventHour < 0 || cfg.EventHour > 23 {
		cfg.EventHour = def.EventHour
	}
	if cfg.DefaultPlatform == "" {
		cfg.DefaultPlatform = def.DefaultPlatform
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if catalog == nil {
		catalog = NewCatalog()
	}

	o := buildOptions(opts)
	s := &Scheduler{
		store:    es,
		catalog:  catalog,
		config:   cfg,
		activity: o.activity,
		metrics:  o.metrics,
		logger:   logger,
		now:      o.now,
	}
	s.loop = jobs.NewPeriodic(componentScheduler, func(ctx context.Context) { s.Sweep(ctx) }, logger, jobs.WithBaseContext(o.baseCtx))
	return s
}

// MaxIntervalDays bounds the scheduler interval.
const MaxIntervalDays = 365

// Start sweeps once immediately and then every intervalDays days
// (default 1, at most MaxIntervalDays). It is a no-op returning false if
// already running.
func (s *Scheduler) Start(intervalDays int) bool {
	switch {
	case intervalDays <= 0:
		intervalDays = 1
	case intervalDays > MaxIntervalDays:
		s.logger.Warnw("Scheduler interval capped", "requested", intervalDays, "max", MaxIntervalDays)
		intervalDays = MaxIntervalDays
	}
	return startLoop(s.loop, componentScheduler, time.Duration(intervalDays)*24*time.Hour, s.logger)
}

// Stop halts periodic execution. Safe to call when not running.
func (s *Scheduler) Stop() bool {
	return s.loop.Stop()
}

// Shutdown stops and waits for an in-flight sweep or ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	return s.loop.Shutdown(ctx)
}

func (s *Scheduler) Running() bool {
	return s.loop.Running()
}

// IntervalDays returns the running interval, or 0 when stopped.
func (s *Scheduler) IntervalDays() int {
	return int(s.loop.Interval() / (24 * time.Hour))
}

func (s *Scheduler) NextRun() time.Time {
	return s.loop.NextRun()
}

func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

func (s *Scheduler) Config() SchedulerConfig {
	return s.config
}

// LastSweep returns the report of the most recent sweep, if any.
func (s *Scheduler) LastSweep() *SweepReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	if s.lastSweep == nil {
		return nil
	}
	r := *s.lastSweep
	return &r
}

// RegisterSpecialDates forwards entries to the catalog. Entries with an
// invalid date key or no name are skipped; their count is returned with
// an error describing the first one.
func (s *Scheduler) RegisterSpecialDates(entries []SpecialDateInput) (int, error) {
	var (
		registered int
		firstErr   error
		skipped    int
	)
	for _, e := range entries {
		if _, _, err := ParseDateKey(e.Date); err != nil || e.Name == "" {
			skipped++
			if firstErr == nil {
				if err == nil {
					err = fmt.Errorf("special date %s: name is required", e.Date)
				}
				firstErr = err
			}
			continue
		}
		s.catalog.Register(e.Date, e.Name, e.Description, e.Platform)
		registered++
	}

	s.logger.Infow("Registered special dates", "registered", registered, "skipped", skipped)
	if skipped > 0 {
		return registered, fmt.Errorf("skipped %d special dates: %w", skipped, firstErr)
	}
	return registered, nil
}

// Sweep creates missing special-date events for every user. It never
// fails as a whole; per-user errors are logged and counted. Concurrent
// calls are serialized.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	loc := s.config.Location
	now := s.now().In(loc)
	report := SweepReport{StartedAt: now}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.fail(ctx, &report, &StoreError{Op: "list users", Err: err})
		return s.finish(ctx, report)
	}
	report.Users = len(users)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for _, userID := range users {
		if ctx.Err() != nil {
			s.logger.Warnw("Scheduler sweep cancelled", "error", ctx.Err())
			break
		}
		report.Created += s.sweepUser(ctx, userID, today, &report)
	}

	return s.finish(ctx, report)
}

func (s *Scheduler) sweepUser(ctx context.Context, userID string, today time.Time, report *SweepReport) int {
	// one snapshot per user; events created below are appended so the
	// duplicate check also sees them
	existing, err := s.store.ListEvents(ctx, userID)
	if err != nil {
		s.fail(ctx, report, &StoreError{Op: "list events", UserID: userID, Err: err})
		return 0
	}

	created := 0
	for i := 0; i <= s.config.LookaheadDays; i++ {
		day := today.AddDate(0, 0, i)
		tmpl, ok := s.catalog.Lookup(DateKey(day))
		if !ok {
			continue
		}
		report.Scanned++
		if s.alreadyScheduled(existing, day, tmpl) {
			continue
		}

		event, err := s.store.CreateEvent(ctx, s.eventFor(userID, day, tmpl))
		if err != nil {
			s.fail(ctx, report, &StoreError{Op: "create event", UserID: userID, Err: err})
			continue
		}
		existing = append(existing, event)
		created++

		s.logger.Infow("Created special date event",
			"userId", userID,
			"eventId", event.ID,
			"title", event.Title,
			"startDate", event.StartDate,
			"platform", event.Platform,
		)
		s.record(ctx, store.Activity{
			Kind:    store.KindEventCreated,
			Message: fmt.Sprintf("Scheduled %s for %s", event.Title, event.StartDate.Format("2006-01-02")),
			UserID:  userID,
			EventID: event.ID,
		})
	}
	return created
}

func (s *Scheduler) alreadyScheduled(existing []calendar.CalendarEvent, day time.Time, tmpl SpecialDate) bool {
	for _, e := range existing {
		if RepresentsSpecialDate(e, day, tmpl, s.config.Location) {
			return true
		}
	}
	return false
}

func (s *Scheduler) eventFor(userID string, day time.Time, tmpl SpecialDate) calendar.CalendarEvent {
	platform := tmpl.Platform
	if platform == PlatformAll {
		platform = s.config.DefaultPlatform
	}
	return calendar.CalendarEvent{
		Title:       tmpl.Name,
		Description: tmpl.Description,
		StartDate:   time.Date(day.Year(), day.Month(), day.Day(), s.config.EventHour, 0, 0, 0, s.config.Location),
		Platform:    platform,
		Status:      calendar.StatusReady,
		UserID:      userID,
	}
}

func (s *Scheduler) fail(ctx context.Context, report *SweepReport, err *StoreError) {
	report.Failed++
	s.metrics.RecordFailure(ctx, componentScheduler, failureKind(err))
	s.logger.Errorw("Scheduler failure", "op", err.Op, "userId", err.UserID, "error", err.Err)
	s.record(ctx, store.Activity{
		Kind:    store.KindFailure,
		Message: err.Op + " failed",
		UserID:  err.UserID,
		Error:   err.Error(),
	})
}

func (s *Scheduler) finish(ctx context.Context, report SweepReport) SweepReport {
	report.Duration = s.now().Sub(report.StartedAt)

	s.metrics.RecordSweep(ctx, componentScheduler, report.Duration)
	s.metrics.RecordEventsCreated(ctx, report.Created)
	s.logger.Infow("Scheduler sweep complete",
		"users", report.Users,
		"matched", report.Scanned,
		"created", report.Created,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	s.record(ctx, store.Activity{
		Kind:    store.KindSweep,
		Message: fmt.Sprintf("Scheduler sweep: %d users, %d events created, %d failures", report.Users, report.Created, report.Failed),
	})

	s.reportMu.Lock()
	s.lastSweep = &report
	s.reportMu.Unlock()
	return report
}

func (s *Scheduler) record(ctx context.Context, a store.Activity) {
	a.Component = componentScheduler
	if err := s.activity.Record(ctx, a); err != nil {
		s.logger.Warnw("Failed to record activity", "kind", a.Kind, "error", err)
	}
}

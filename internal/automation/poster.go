package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/content"
	"github.com/contentpilot/contentpilot-backend/internal/jobs"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const componentPoster = "poster"

// PosterConfig tunes the Auto-Posting Engine.
type PosterConfig struct {
	Tone   string
	Length string
	// ConfirmDelivery marks an event published only after the publisher
	// succeeds; failed deliveries stay ready and are retried on the next
	// sweep. When false an event is marked published as soon as content is
	// attached and again after the publish attempt, whatever its outcome.
	ConfirmDelivery bool
}

func DefaultPosterConfig() PosterConfig {
	return PosterConfig{
		Tone:            content.ToneProfessional,
		Length:          content.LengthMedium,
		ConfirmDelivery: true,
	}
}

// Poster publishes ready events whose start time has passed.
type Poster struct {
	store     EventStore
	generator ContentGenerator
	publisher Publisher
	config    PosterConfig
	activity  ActivityRecorder
	metrics   Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time
	baseCtx   context.Context

	loop      *jobs.Periodic
	triggers  singleflight.Group
	triggerMu sync.Mutex
	triggerWG sync.WaitGroup
	closed    bool // set by Shutdown; later triggers are dropped

	sweepMu   sync.Mutex
	reportMu  sync.RWMutex
	lastSweep *SweepReport
}

func NewPoster(es EventStore, gen ContentGenerator, pub Publisher, cfg PosterConfig, logger *zap.SugaredLogger, opts ...Option) *Poster {
	def := DefaultPosterConfig()
	if cfg.Tone == "" {
		cfg.Tone = def.Tone
	}
	if cfg.Length == "" {
		cfg.Length = def.Length
	}

	o := buildOptions(opts)
	p := &Poster{
		store:     es,
		generator: gen,
		publisher: pub,
		config:    cfg,
		activity:  o.activity,
		metrics:   o.metrics,
		logger:    logger,
		now:       o.now,
		baseCtx:   o.baseCtx,
	}
	p.loop = jobs.NewPeriodic(componentPoster, func(ctx context.Context) { p.Sweep(ctx) }, logger, jobs.WithBaseContext(o.baseCtx))
	return p
}

// MaxIntervalMinutes bounds the poster interval to one year.
const MaxIntervalMinutes = 525600

// Start sweeps once immediately and then every intervalMinutes minutes
// (default 10, at most MaxIntervalMinutes). It is a no-op returning false
// if already running.
func (p *Poster) Start(intervalMinutes int) bool {
	switch {
	case intervalMinutes <= 0:
		intervalMinutes = 10
	case intervalMinutes > MaxIntervalMinutes:
		p.logger.Warnw("Poster interval capped", "requested", intervalMinutes, "max", MaxIntervalMinutes)
		intervalMinutes = MaxIntervalMinutes
	}
	return startLoop(p.loop, componentPoster, time.Duration(intervalMinutes)*time.Minute, p.logger)
}

// Stop halts periodic execution. A sweep in progress is not interrupted.
func (p *Poster) Stop() bool {
	return p.loop.Stop()
}

// Shutdown stops the loop and waits for in-flight sweeps, including
// ones fired by Trigger, or ctx. Triggers after Shutdown are dropped.
func (p *Poster) Shutdown(ctx context.Context) error {
	p.triggerMu.Lock()
	p.closed = true
	p.triggerMu.Unlock()

	if err := p.loop.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		p.triggerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poster) Running() bool {
	return p.loop.Running()
}

// IntervalMinutes returns the running interval, or 0 when stopped.
func (p *Poster) IntervalMinutes() int {
	return int(p.loop.Interval() / time.Minute)
}

func (p *Poster) NextRun() time.Time {
	return p.loop.NextRun()
}

func (p *Poster) LastSweep() *SweepReport {
	p.reportMu.RLock()
	defer p.reportMu.RUnlock()
	if p.lastSweep == nil {
		return nil
	}
	r := *p.lastSweep
	return &r
}

// Trigger runs one sweep in the background and returns immediately.
// Triggers arriving while a triggered sweep is in flight share it.
func (p *Poster) Trigger() {
	p.triggerMu.Lock()
	defer p.triggerMu.Unlock()
	if p.closed {
		p.logger.Debugw("Trigger ignored after shutdown")
		return
	}

	p.triggerWG.Add(1)
	go func() {
		defer p.triggerWG.Done()
		p.triggers.Do("sweep", func() (interface{}, error) {
			return p.Sweep(p.baseCtx), nil
		})
	}()
}

// DueEvents returns the events that should be published at now, keeping
// their order.
func DueEvents(events []calendar.CalendarEvent, now time.Time) []calendar.CalendarEvent {
	var due []calendar.CalendarEvent
	for _, e := range events {
		if e.IsDue(now) {
			due = append(due, e)
		}
	}
	return due
}

// Sweep publishes every due event across all users. Each event is handled
// independently; a failure is logged and counted and never stops the
// sweep. Concurrent calls are serialized.
func (p *Poster) Sweep(ctx context.Context) SweepReport {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()

	now := p.now()
	report := SweepReport{StartedAt: now}

	users, err := p.store.ListUsers(ctx)
	if err != nil {
		p.fail(ctx, &report, calendar.CalendarEvent{}, &StoreError{Op: "list users", Err: err})
		return p.finish(ctx, report)
	}
	report.Users = len(users)

	var events []calendar.CalendarEvent
	for _, userID := range users {
		userEvents, err := p.store.ListEvents(ctx, userID)
		if err != nil {
			p.fail(ctx, &report, calendar.CalendarEvent{UserID: userID}, &StoreError{Op: "list events", UserID: userID, Err: err})
			continue
		}
		events = append(events, userEvents...)
	}

	due := DueEvents(events, now)
	report.Scanned = len(due)

	for _, event := range due {
		if ctx.Err() != nil {
			p.logger.Warnw("Poster sweep cancelled", "remaining", len(due)-report.Published-report.Failed, "error", ctx.Err())
			break
		}
		if err := p.processSafely(ctx, event); err != nil {
			p.fail(ctx, &report, event, err)
			continue
		}
		report.Published++
	}

	return p.finish(ctx, report)
}

func (p *Poster) processSafely(ctx context.Context, event calendar.CalendarEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing event %s: %v", event.ID, r)
		}
	}()
	return p.process(ctx, event)
}

func (p *Poster) process(ctx context.Context, event calendar.CalendarEvent) error {
	entry, err := p.resolveContent(ctx, event)
	if err != nil {
		return err
	}

	pubErr := p.publisher.Publish(ctx, event.Platform, entry)
	if pubErr != nil {
		delErr := &DeliveryError{EventID: event.ID, UserID: event.UserID, Platform: event.Platform, Err: pubErr}
		if p.config.ConfirmDelivery {
			return delErr
		}
		if err := p.markPublished(ctx, event); err != nil {
			return errors.Join(delErr, err)
		}
		return delErr
	}

	if err := p.markPublished(ctx, event); err != nil {
		return err
	}

	p.metrics.RecordEventPublished(ctx, event.Platform)
	p.logger.Infow("Published event",
		"eventId", event.ID,
		"userId", event.UserID,
		"platform", event.Platform,
		"contentId", entry.ID,
	)
	p.record(ctx, store.Activity{
		Kind:    store.KindEventPublished,
		Message: fmt.Sprintf("Published %s%s", event.Title, platformSuffix(event.Platform)),
		UserID:  event.UserID,
		EventID: event.ID,
	})
	return nil
}

// resolveContent loads the event's content or generates, stores and
// attaches new content when there is none.
func (p *Poster) resolveContent(ctx context.Context, event calendar.CalendarEvent) (calendar.ContentEntry, error) {
	if event.ContentID != "" {
		entry, err := p.store.GetContent(ctx, event.ContentID)
		switch {
		case err == nil && strings.TrimSpace(entry.Content) != "":
			return entry, nil
		case err == nil:
			p.logger.Warnw("Attached content is empty; regenerating", "eventId", event.ID, "contentId", event.ContentID)
		case errors.Is(err, calendar.ErrNotFound):
			p.logger.Warnw("Attached content not found; regenerating", "eventId", event.ID, "contentId", event.ContentID)
		default:
			return calendar.ContentEntry{}, &StoreError{Op: "get content", EventID: event.ID, UserID: event.UserID, Err: err}
		}
	}

	contentType := ContentTypeForPlatform(event.Platform)
	text, err := p.generator.Generate(ctx, content.Request{
		Type:   contentType,
		Topic:  event.Title,
		Tone:   p.config.Tone,
		Length: p.config.Length,
	})
	if err != nil {
		return calendar.ContentEntry{}, &GenerationError{EventID: event.ID, UserID: event.UserID, Err: err}
	}

	entry, err := p.store.CreateContent(ctx, calendar.ContentEntry{
		Title:     event.Title,
		Content:   text,
		Type:      contentType,
		Status:    calendar.ContentStatusGenerated,
		UserID:    event.UserID,
		WordCount: calendar.CountWords(text),
	})
	if err != nil {
		return calendar.ContentEntry{}, &StoreError{Op: "create content", EventID: event.ID, UserID: event.UserID, Err: err}
	}

	patch := calendar.EventPatch{ContentID: &entry.ID}
	if !p.config.ConfirmDelivery {
		published := calendar.StatusPublished
		patch.Status = &published
	}
	if _, err := p.store.UpdateEvent(ctx, event.ID, patch); err != nil {
		return calendar.ContentEntry{}, &StoreError{Op: "attach content", EventID: event.ID, UserID: event.UserID, Err: err}
	}

	p.logger.Debugw("Generated content for event", "eventId", event.ID, "contentId", entry.ID, "type", contentType, "words", entry.WordCount)
	return entry, nil
}

func (p *Poster) markPublished(ctx context.Context, event calendar.CalendarEvent) error {
	if _, err := p.store.UpdateEvent(ctx, event.ID, calendar.StatusPatch(calendar.StatusPublished)); err != nil {
		return &StoreError{Op: "mark published", EventID: event.ID, UserID: event.UserID, Err: err}
	}
	return nil
}

func (p *Poster) fail(ctx context.Context, report *SweepReport, event calendar.CalendarEvent, err error) {
	report.Failed++
	kind := failureKind(err)
	p.metrics.RecordFailure(ctx, componentPoster, kind)
	p.logger.Errorw("Poster failure",
		"kind", kind,
		"eventId", event.ID,
		"userId", event.UserID,
		"error", err,
	)
	p.record(ctx, store.Activity{
		Kind:    store.KindFailure,
		Message: fmt.Sprintf("%s failure", kind),
		UserID:  event.UserID,
		EventID: event.ID,
		Error:   err.Error(),
	})
}

func (p *Poster) finish(ctx context.Context, report SweepReport) SweepReport {
	report.Duration = p.now().Sub(report.StartedAt)

	p.metrics.RecordSweep(ctx, componentPoster, report.Duration)
	p.logger.Infow("Poster sweep complete",
		"users", report.Users,
		"due", report.Scanned,
		"published", report.Published,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	p.record(ctx, store.Activity{
		Kind:    store.KindSweep,
		Message: fmt.Sprintf("Poster sweep: %d due, %d published, %d failures", report.Scanned, report.Published, report.Failed),
	})

	p.reportMu.Lock()
	p.lastSweep = &report
	p.reportMu.Unlock()
	return report
}

func (p *Poster) record(ctx context.Context, a store.Activity) {
	a.Component = componentPoster
	if err := p.activity.Record(ctx, a); err != nil {
		p.logger.Warnw("Failed to record activity", "kind", a.Kind, "error", err)
	}
}

func platformSuffix(platform string) string {
	if platform == "" {
		return ""
	}
	return " to " + platform
}

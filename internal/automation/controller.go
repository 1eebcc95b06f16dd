package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"go.uber.org/zap"
)

// Controller is the control surface over one Scheduler and one Poster.
// The tenant id each operation takes is used for authorization and audit
// only; both processes always sweep every user.
type Controller struct {
	scheduler *Scheduler
	poster    *Poster
	store     EventStore
	activity  ActivityRecorder
	logger    *zap.SugaredLogger
}

func NewController(scheduler *Scheduler, poster *Poster, es EventStore, activity ActivityRecorder, logger *zap.SugaredLogger) *Controller {
	if activity == nil {
		activity = nopRecorder{}
	}
	return &Controller{
		scheduler: scheduler,
		poster:    poster,
		store:     es,
		activity:  activity,
		logger:    logger,
	}
}

// ProcessStatus describes one background process.
type ProcessStatus struct {
	Running   bool         `json:"running"`
	Interval  int          `json:"interval,omitempty"`
	Unit      string       `json:"unit"`
	NextRun   *time.Time   `json:"nextRun,omitempty"`
	LastSweep *SweepReport `json:"lastSweep,omitempty"`
}

// Status is the combined view reported to the control surface.
type Status struct {
	Scheduler      ProcessStatus    `json:"scheduler"`
	Poster         ProcessStatus    `json:"poster"`
	PendingEvents  int              `json:"pendingEvents"`
	ReadyEvents    int              `json:"readyEvents"`
	DueEvents      int              `json:"dueEvents"`
	RecentActivity []store.Activity `json:"recentActivity"`
}

func authorize(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrUnauthorized
	}
	return nil
}

// StartScheduler starts the scheduler. started is false when it was
// already running.
func (c *Controller) StartScheduler(ctx context.Context, tenantID string, intervalDays int) (started bool, err error) {
	if err := authorize(tenantID); err != nil {
		return false, err
	}
	started = c.scheduler.Start(intervalDays)
	c.audit(ctx, tenantID, componentScheduler, startMessage("Scheduler", started, c.scheduler.IntervalDays(), "day"))
	return started, nil
}

func (c *Controller) StopScheduler(ctx context.Context, tenantID string) (stopped bool, err error) {
	if err := authorize(tenantID); err != nil {
		return false, err
	}
	stopped = c.scheduler.Stop()
	if stopped {
		c.audit(ctx, tenantID, componentScheduler, "Scheduler stopped")
	}
	return stopped, nil
}

// StartPoster starts the auto-posting engine. started is false when it
// was already running.
func (c *Controller) StartPoster(ctx context.Context, tenantID string, intervalMinutes int) (started bool, err error) {
	if err := authorize(tenantID); err != nil {
		return false, err
	}
	started = c.poster.Start(intervalMinutes)
	c.audit(ctx, tenantID, componentPoster, startMessage("Poster", started, c.poster.IntervalMinutes(), "minute"))
	return started, nil
}

func (c *Controller) StopPoster(ctx context.Context, tenantID string) (stopped bool, err error) {
	if err := authorize(tenantID); err != nil {
		return false, err
	}
	stopped = c.poster.Stop()
	if stopped {
		c.audit(ctx, tenantID, componentPoster, "Poster stopped")
	}
	return stopped, nil
}

// AddSpecialDates forwards entries to the scheduler's catalog. The count
// of registered entries is returned even when some were rejected.
func (c *Controller) AddSpecialDates(ctx context.Context, tenantID string, entries []SpecialDateInput) (int, error) {
	if err := authorize(tenantID); err != nil {
		return 0, err
	}
	n, err := c.scheduler.RegisterSpecialDates(entries)
	if n > 0 {
		c.audit(ctx, tenantID, componentScheduler, fmt.Sprintf("Added %d special dates", n))
	}
	return n, err
}

// UpcomingSpecialDates lists catalog occurrences in the next days days,
// in the scheduler's location.
func (c *Controller) UpcomingSpecialDates(tenantID string, days int) ([]Occurrence, error) {
	if err := authorize(tenantID); err != nil {
		return nil, err
	}
	cfg := c.scheduler.Config()
	if days <= 0 {
		days = cfg.LookaheadDays
	}
	return c.scheduler.Catalog().Upcoming(c.scheduler.now().In(cfg.Location), days)
}

// ForceCheck starts one poster sweep outside the normal interval and
// returns without waiting for it.
func (c *Controller) ForceCheck(ctx context.Context, tenantID string) error {
	if err := authorize(tenantID); err != nil {
		return err
	}
	c.poster.Trigger()
	c.audit(ctx, tenantID, componentPoster, "Manual check triggered")
	return nil
}

// Status reports both processes, the tenant's pending and ready event
// counts and the most recent activity.
func (c *Controller) Status(ctx context.Context, tenantID string, activityLimit int) (Status, error) {
	if err := authorize(tenantID); err != nil {
		return Status{}, err
	}

	st := Status{
		Scheduler: processStatus(c.scheduler.Running(), c.scheduler.IntervalDays(), "days", c.scheduler.NextRun(), c.scheduler.LastSweep()),
		Poster:    processStatus(c.poster.Running(), c.poster.IntervalMinutes(), "minutes", c.poster.NextRun(), c.poster.LastSweep()),
	}

	events, err := c.store.ListEvents(ctx, tenantID)
	if err != nil {
		return Status{}, &StoreError{Op: "list events", UserID: tenantID, Err: err}
	}
	now := c.poster.now()
	for _, e := range events {
		switch e.Status {
		case calendar.StatusPending:
			st.PendingEvents++
		case calendar.StatusReady:
			st.ReadyEvents++
			if e.IsDue(now) {
				st.DueEvents++
			}
		}
	}

	recent, err := c.activity.Recent(ctx, activityLimit)
	if err != nil {
		c.logger.Warnw("Failed to read recent activity", "error", err)
	}
	if recent == nil {
		recent = []store.Activity{}
	}
	st.RecentActivity = recent
	return st, nil
}

// Activity returns up to limit recent activity entries, newest first.
func (c *Controller) Activity(ctx context.Context, tenantID string, limit int) ([]store.Activity, error) {
	if err := authorize(tenantID); err != nil {
		return nil, err
	}
	return c.activity.Recent(ctx, limit)
}

// Shutdown stops both processes and waits for in-flight sweeps.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.scheduler.Shutdown(ctx); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	if err := c.poster.Shutdown(ctx); err != nil {
		return fmt.Errorf("poster shutdown: %w", err)
	}
	return nil
}

func (c *Controller) audit(ctx context.Context, tenantID, component, message string) {
	c.logger.Infow(message, "tenant", tenantID, "component", component)
	err := c.activity.Record(ctx, store.Activity{
		Kind:      store.KindControl,
		Component: component,
		Message:   message,
		UserID:    tenantID,
	})
	if err != nil {
		c.logger.Warnw("Failed to record activity", "error", err)
	}
}

func processStatus(running bool, interval int, unit string, next time.Time, last *SweepReport) ProcessStatus {
	ps := ProcessStatus{Running: running, Interval: interval, Unit: unit, LastSweep: last}
	if !next.IsZero() {
		ps.NextRun = &next
	}
	return ps
}

func startMessage(name string, started bool, interval int, unit string) string {
	if !started {
		return name + " already running"
	}
	if interval != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%s started, every %d %s", name, interval, unit)
}

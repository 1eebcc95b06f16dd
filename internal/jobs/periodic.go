package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// minInterval is the resolution of cron schedules.
const minInterval = time.Second

// ErrInvalidInterval is returned by Start for a zero or negative interval.
var ErrInvalidInterval = errors.New("interval must be positive")

// Periodic runs a function once when started and then on every interval
// tick until stopped. A tick that arrives while the previous run is still
// going is skipped, so runs never stack.
type Periodic struct {
	name    string
	run     func(context.Context)
	logger  *zap.SugaredLogger
	baseCtx context.Context

	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration
	active   *atomic.Bool    // cleared by Stop; runs check it before starting
	stopped  context.Context // done when the last scheduled run returns
}

// PeriodicOption configures a Periodic.
type PeriodicOption func(*Periodic)

// WithBaseContext sets the context passed to every run. Cancelling it is
// how the process asks in-flight runs to wind down.
func WithBaseContext(ctx context.Context) PeriodicOption {
	return func(p *Periodic) {
		p.baseCtx = ctx
	}
}

func NewPeriodic(name string, run func(context.Context), logger *zap.SugaredLogger, opts ...PeriodicOption) *Periodic {
	p := &Periodic{
		name:    name,
		run:     run,
		logger:  logger,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins periodic execution with one run fired immediately. A Stop
// that lands before that run begins cancels it. Start returns false and
// does nothing if already running.
func (p *Periodic) Start(interval time.Duration) (bool, error) {
	if interval <= 0 {
		return false, ErrInvalidInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return false, nil
	}
	if interval < minInterval {
		interval = minInterval
	}

	active := new(atomic.Bool)
	active.Store(true)

	logger := cronLogger{p.logger.With("job", p.name)}
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(func() {
			if active.Load() {
				p.run(p.baseCtx)
			}
		}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(newImmediateSchedule(interval), job)
	c.Start()

	p.cron = c
	p.interval = interval
	p.active = active

	p.logger.Infow("Started periodic job", "job", p.name, "interval", interval.String())
	return true, nil
}

// Stop prevents further ticks. A run already in progress is left to
// finish. It returns false if the job was not running.
func (p *Periodic) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron == nil {
		return false
	}
	p.active.Store(false)
	p.stopped = p.cron.Stop()
	p.cron = nil

	p.logger.Infow("Stopped periodic job", "job", p.name)
	return true
}

// Shutdown stops the job and waits for in-flight runs or ctx.
func (p *Periodic) Shutdown(ctx context.Context) error {
	p.Stop()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped == nil {
		return nil
	}
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// Interval returns the configured interval, or zero when stopped.
func (p *Periodic) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return 0
	}
	return p.interval
}

// NextRun returns the time of the next scheduled tick, or zero when stopped.
func (p *Periodic) NextRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// immediateSchedule fires at the moment cron starts and then every
// interval. cron.Every would wait a full interval for the first tick.
type immediateSchedule struct {
	interval time.Duration
	started  atomic.Bool
}

func newImmediateSchedule(interval time.Duration) *immediateSchedule {
	return &immediateSchedule{interval: interval.Truncate(time.Second)}
}

func (s *immediateSchedule) Next(t time.Time) time.Time {
	if s.started.CompareAndSwap(false, true) {
		return t
	}
	return t.Add(s.interval - time.Duration(t.Nanosecond())*time.Nanosecond)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"todaycal/internal/feed"
	"todaycal/internal/ics"
	appLog "todaycal/internal/log"
	"todaycal/internal/model"
)

// DefaultSchedule re-fetches the feed every five minutes.
const DefaultSchedule = "*/5 * * * *"

// ErrSuperseded is returned by a refresh that was cancelled by a newer one
// (or by Stop) before it could publish its result.
var ErrSuperseded = errors.New("refresh: superseded by a newer refresh")

// Observer receives refresh outcomes. result is success, failure or superseded.
type Observer interface {
	ObserveRefresh(result string, eventCount int, at time.Time)
}

// State is the snapshot shown to readers.
type State struct {
	// Events is nil whenever Err is set: a failed refresh never leaves stale
	// events on display.
	Events []model.Event
	Err    error
	// Loading is true until the first refresh has finished.
	Loading   bool
	UpdatedAt time.Time
}

// Options configures a Refresher. Zero values select defaults.
type Options struct {
	Location *time.Location   // parse/display timezone; time.Local when nil
	Timeout  time.Duration    // per-refresh deadline; feed.DefaultTimeout when zero
	Schedule string           // cron spec; DefaultSchedule when empty
	Observer Observer         // optional
	Now      func() time.Time // clock; time.Now when nil
}

// Refresher keeps the parsed event list current.
//
// Every refresh gets its own context with a deadline. Starting a refresh
// cancels the one in flight, and only the latest refresh may publish, so
// overlapping timer firings never race on the shared state.
type Refresher struct {
	source feed.Source
	opts   Options

	mu       sync.RWMutex
	gen      uint64
	inFlight context.CancelFunc
	state    State
	cron     *cron.Cron
	stopped  chan struct{}
}

// New creates a Refresher reading documents from source.
func New(source feed.Source, opts Options) *Refresher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = feed.DefaultTimeout
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{
		source: source,
		opts:   opts,
		state:  State{Loading: true},
	}
}

// State returns the current snapshot.
func (r *Refresher) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Refresh fetches and parses the feed once and publishes the result.
// It returns ErrSuperseded if a newer refresh (or Stop) cancelled it.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.inFlight != nil {
		r.inFlight()
	}
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	r.inFlight = cancel
	r.mu.Unlock()
	defer cancel()

	events, err := r.load(ctx)
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		r.observe("superseded", 0, now)
		appLog.Debug("refresh superseded", "generation", gen)
		return ErrSuperseded
	}
	r.inFlight = nil

	if err != nil {
		r.state = State{Err: err, UpdatedAt: now}
		r.observe("failure", 0, now)
		appLog.Error("refresh failed", err)
		return err
	}

	r.state = State{Events: events, UpdatedAt: now}
	r.observe("success", len(events), now)
	appLog.Info("refresh completed", "event_count", len(events))
	return nil
}

func (r *Refresher) load(ctx context.Context) ([]model.Event, error) {
	raw, err := r.source.Raw(ctx)
	if err != nil {
		return nil, err
	}
	events, err := ics.Parse(string(raw), r.opts.Location)
	if err != nil {
		return nil, err
	}
	for _, v := range ics.Validate(events) {
		appLog.Warn("calendar event violates invariants", "detail", v.Error())
	}
	return events, nil
}

// Start runs a first refresh in the background and then refreshes on the
// configured cron schedule until Stop is called or ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(r.opts.Location),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	if _, err := c.AddFunc(r.opts.Schedule, func() { _ = r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", r.opts.Schedule, err)
	}

	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return errors.New("refresh: already started")
	}
	r.cron = c
	stopped := make(chan struct{})
	r.stopped = stopped
	r.mu.Unlock()

	go func() { _ = r.Refresh(ctx) }()
	c.Start()

	go func() {
		select {
		case <-ctx.Done():
			r.stop(stopped)
		case <-stopped:
		}
	}()

	appLog.Info("refresh scheduled", "schedule", r.opts.Schedule)
	return nil
}

// Stop halts the schedule and cancels the refresh in flight, whose result
// is then discarded. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.stop(nil)
}

// stop ends the run identified by run, or the current run when run is nil.
// A watcher of an earlier run therefore cannot stop a later one.
func (r *Refresher) stop(run chan struct{}) {
	r.mu.Lock()
	if run != nil && run != r.stopped {
		r.mu.Unlock()
		return
	}
	c := r.cron
	r.cron = nil
	if r.stopped != nil {
		close(r.stopped)
		r.stopped = nil
	}
	if r.inFlight != nil {
		r.inFlight()
		r.inFlight = nil
	}
	r.gen++
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Interval is the gap between two consecutive firings of schedule after now.
// Cron specs need not be evenly spaced, so it is an estimate for pacing
// clients such as the page reload.
func Interval(schedule string, now time.Time) (time.Duration, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return 0, fmt.Errorf("refresh: invalid schedule %q: %w", schedule, err)
	}
	next := sched.Next(now)
	return sched.Next(next).Sub(next), nil
}

// Interval returns Interval for the configured schedule.
func (r *Refresher) Interval() time.Duration {
	d, err := Interval(r.opts.Schedule, r.opts.Now())
	if err != nil {
		return 0
	}
	return d
}

func (r *Refresher) observe(result string, n int, at time.Time) {
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveRefresh(result, n, at)
	}
}

// cronLogger routes cron's own logging into internal/log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

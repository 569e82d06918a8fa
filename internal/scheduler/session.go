package scheduler

import (
	"context"
	"sync"
	"time"

	"inditrade/internal/logger"
	"inditrade/internal/market"

	"github.com/robfig/cron/v3"
)

const DefaultSessionSchedule = "@every 1m"

// SessionWatcher recomputes the market state on a cron schedule and
// reports open/closed transitions.
type SessionWatcher struct {
	Calendar market.Calendar
	Schedule string
	OnChange func(prev, next market.MarketState)

	clock func() time.Time
	mu    sync.RWMutex
	state market.MarketState
}

func NewSessionWatcher(cal market.Calendar, schedule string) *SessionWatcher {
	if schedule == "" {
		schedule = DefaultSessionSchedule
	}
	return &SessionWatcher{Calendar: cal, Schedule: schedule, clock: time.Now}
}

// State returns the last computed state, computing it on first use.
func (w *SessionWatcher) State() market.MarketState {
	w.mu.RLock()
	st := w.state
	w.mu.RUnlock()
	if st == "" {
		return w.Check()
	}
	return st
}

// Check recomputes the state now.
func (w *SessionWatcher) Check() market.MarketState {
	now := w.clock()
	next := w.Calendar.State(now)

	w.mu.Lock()
	prev := w.state
	w.state = next
	w.mu.Unlock()

	if prev == next {
		return next
	}
	if prev == "" {
		logger.Infof("market session: %s (next open %s)", next, w.Calendar.NextOpen(now).Format(time.RFC3339))
		return next
	}
	logger.Infof("market session: %s -> %s", prev, next)
	if w.OnChange != nil {
		w.OnChange(prev, next)
	}
	return next
}

// Run schedules Check until ctx is cancelled.
func (w *SessionWatcher) Run(ctx context.Context) error {
	loc := w.Calendar.Location
	if loc == nil {
		loc = market.IST
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(w.Schedule, func() { w.Check() }); err != nil {
		return err
	}
	w.Check()
	c.Start()
	logger.Infof("market session watcher started schedule=%q", w.Schedule)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Infof("market session watcher stopped")
	return nil
}

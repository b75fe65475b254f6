// Package connwatch tracks whether the services airspace-copilot depends
// on are reachable: the reasoning provider and the snapshot source.
//
// Each dependency is probed in its own goroutine. While a dependency is
// down the probe is retried with exponential backoff; once it is up the
// probe repeats on a fixed interval. Transitions are logged and reported
// through an optional callback, and the latest state of every dependency
// is available for health endpoints.
package connwatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Probe checks whether a dependency is reachable. Return nil if healthy.
type Probe func(ctx context.Context) error

// Schedule controls probe timing.
type Schedule struct {
	// Retry is the first delay after a failed probe (default: 2s).
	Retry time.Duration

	// MaxRetry caps backoff growth (default: 60s).
	MaxRetry time.Duration

	// Factor scales the retry delay after each consecutive failure (default: 2).
	Factor float64

	// Interval is the delay between probes while healthy (default: 60s).
	Interval time.Duration

	// Timeout bounds each probe call (default: 10s).
	Timeout time.Duration
}

// DefaultSchedule returns 2s, 4s, 8s ... 60s retries and a 60s healthy
// interval with a 10s probe timeout.
func DefaultSchedule() Schedule {
	return Schedule{
		Retry:    2 * time.Second,
		MaxRetry: 60 * time.Second,
		Factor:   2,
		Interval: 60 * time.Second,
		Timeout:  10 * time.Second,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.Retry <= 0 {
		s.Retry = d.Retry
	}
	if s.MaxRetry <= 0 {
		s.MaxRetry = d.MaxRetry
	}
	if s.Factor < 1 {
		s.Factor = d.Factor
	}
	if s.Interval <= 0 {
		s.Interval = d.Interval
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	return s
}

// next returns the delay after a failure, given the previous one.
func (s Schedule) next(prev time.Duration) time.Duration {
	if prev <= 0 {
		return s.Retry
	}
	d := time.Duration(float64(prev) * s.Factor)
	if d > s.MaxRetry {
		d = s.MaxRetry
	}
	return d
}

// Check describes one watched dependency.
type Check struct {
	// Name identifies the dependency in logs and status output
	// (e.g., "reasoning", "snapshots").
	Name string

	// Probe must be safe for concurrent use.
	Probe Probe

	Schedule Schedule

	// OnChange is called after the first probe and on every up/down
	// transition. It runs on the watcher goroutine and must not block.
	OnChange func(name string, up bool, err error)
}

// Status is the last known state of a dependency.
type Status struct {
	Name      string    `json:"name"`
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checked_at"`
	Failures  int       `json:"consecutive_failures"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher probes a single dependency until stopped.
type Watcher struct {
	check  Check
	logger *slog.Logger
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  Status
	checked bool
}

// Status returns a copy of the current state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Up reports whether the last probe succeeded.
func (w *Watcher) Up() bool {
	return w.Status().Up
}

// Stop cancels the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	sched := w.check.Schedule
	var delay time.Duration
	for {
		err := w.probe(ctx)
		if ctx.Err() != nil {
			return
		}
		w.record(err)

		if err == nil {
			delay = 0
			if !sleep(ctx, sched.Interval) {
				return
			}
			continue
		}
		delay = sched.next(delay)
		w.logger.Debug("dependency probe failed",
			"dependency", w.check.Name,
			"retry_in", delay.String(),
			"error", err,
		)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (w *Watcher) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.check.Schedule.Timeout)
	defer cancel()
	return w.check.Probe(ctx)
}

// record stores a probe outcome and reports transitions.
func (w *Watcher) record(err error) {
	w.mu.Lock()
	first := !w.checked
	wasUp := w.status.Up
	up := err == nil

	w.checked = true
	w.status.Up = up
	w.status.CheckedAt = w.now()
	if up {
		w.status.Failures = 0
		w.status.LastError = ""
	} else {
		w.status.Failures++
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	if !first && up == wasUp {
		return
	}

	switch {
	case up && first:
		w.logger.Info("dependency reachable", "dependency", w.check.Name)
	case up:
		w.logger.Info("dependency recovered", "dependency", w.check.Name)
	case first:
		w.logger.Warn("dependency not reachable", "dependency", w.check.Name, "error", err)
	default:
		w.logger.Warn("dependency became unreachable", "dependency", w.check.Name, "error", err)
	}
	if w.check.OnChange != nil {
		w.check.OnChange(w.check.Name, up, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Monitor owns a set of watchers.
type Monitor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	watchers map[string]*Watcher
}

// NewMonitor creates an empty Monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger, watchers: make(map[string]*Watcher)}
}

// Watch starts probing c in the background until ctx is cancelled or
// Stop is called. A second Watch with the same name replaces and stops
// the earlier watcher.
//
// Panics if Name is empty or Probe is nil.
func (m *Monitor) Watch(ctx context.Context, c Check) *Watcher {
	if c.Name == "" {
		panic("connwatch: Check.Name must not be empty")
	}
	if c.Probe == nil {
		panic("connwatch: Check.Probe must not be nil")
	}
	c.Schedule = c.Schedule.withDefaults()

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		check:  c,
		logger: m.logger,
		now:    time.Now,
		cancel: cancel,
		done:   make(chan struct{}),
		status: Status{Name: c.Name},
	}

	m.mu.Lock()
	prev := m.watchers[c.Name]
	m.watchers[c.Name] = w
	m.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	go w.run(watchCtx)
	return w
}

// Status returns every dependency's state, sorted by name.
func (m *Monitor) Status() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w.Status())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether every watched dependency is up. A dependency
// that has not been probed yet counts as down.
func (m *Monitor) Healthy() bool {
	for _, s := range m.Status() {
		if !s.Up {
			return false
		}
	}
	return true
}

// Stop stops every watcher and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}

package mqtt

import (
	"sync"
	"time"
)

// DailyTokens tracks reasoning token usage that resets at local
// midnight. It is safe for concurrent use and satisfies the pipeline's
// token observer so it can sit beside the Prometheus collectors.
type DailyTokens struct {
	mu       sync.Mutex
	input    int64
	output   int64
	calls    int64
	lastCall time.Time
	resetDay int // day-of-year of last reset
	loc      *time.Location
	now      func() time.Time
}

// NewDailyTokens creates a new accumulator using loc for midnight
// detection. If loc is nil, [time.Local] is used.
func NewDailyTokens(loc *time.Location) *DailyTokens {
	if loc == nil {
		loc = time.Local
	}
	d := &DailyTokens{loc: loc, now: time.Now}
	d.resetDay = d.now().In(loc).YearDay()
	return d
}

// ObserveTokens records one completed reasoning call. Stage and model
// are accepted for interface compatibility; totals are not split.
func (d *DailyTokens) ObserveTokens(_, _ string, input, output int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	d.input += int64(input)
	d.output += int64(output)
	d.calls++
	d.lastCall = d.now()
}

// Snapshot returns today's input tokens, output tokens, and call count.
func (d *DailyTokens) Snapshot() (input, output, calls int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	return d.input, d.output, d.calls
}

// LastCall returns when the most recent call was observed, or the zero
// time if none has been.
func (d *DailyTokens) LastCall() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCall
}

// maybeReset zeroes the counters when the local day changes. Must be
// called with d.mu held.
func (d *DailyTokens) maybeReset() {
	today := d.now().In(d.loc).YearDay()
	if today != d.resetDay {
		d.input = 0
		d.output = 0
		d.calls = 0
		d.resetDay = today
	}
}

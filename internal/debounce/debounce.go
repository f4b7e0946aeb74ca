// Package debounce collapses bursts of events into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules calls. The real clock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns a clock backed by the runtime timers.
func RealClock() Clock {
	return realClock{}
}

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the configured delay. Superseded functions never run.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	clock Clock
	timer Timer
	gen   uint64
}

// New returns a Debouncer using the real clock.
func New(delay time.Duration) *Debouncer {
	return NewWithClock(delay, RealClock())
}

// NewWithClock returns a Debouncer using the given clock.
func NewWithClock(delay time.Duration, clock Clock) *Debouncer {
	return &Debouncer{delay: delay, clock: clock}
}

// Delay returns the quiet window.
func (d *Debouncer) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// SetDelay changes the quiet window for future triggers.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Trigger cancels any pending call and schedules f after the delay.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		f()
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

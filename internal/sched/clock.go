// Package sched provides deadline scheduling on an injectable clock.
//
// The engine's timers (period ticks, window completion, midnight rollover,
// idle sampling) all register deadlines with a Scheduler instead of calling
// time.AfterFunc directly. In production the Scheduler runs on the real
// clock; in tests a fake clock advances time synchronously so boundary
// behavior is exercised without wall-clock waits.
package sched

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock access.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that delivers the time after d elapses.
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production clock.
type RealClock struct{}

// NewRealClock returns the production clock.
func NewRealClock() *RealClock { return &RealClock{} }

// Now implements Clock.
func (*RealClock) Now() time.Time { return time.Now() }

// After implements Clock.
func (*RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewFakeClock returns a fake clock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After implements Clock.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{at: at, ch: ch})
	return ch
}

// Advance moves the clock forward, firing any waiters that come due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var remaining []*fakeWaiter
	var due []*fakeWaiter
	for _, w := range c.waiters {
		if !w.at.After(now) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	for _, w := range due {
		w.ch <- now
	}
}

// Set jumps the clock to t, firing any waiters that come due.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	d := t.Sub(c.now)
	c.mu.Unlock()
	if d > 0 {
		c.Advance(d)
	}
}

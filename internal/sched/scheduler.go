package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Timer is a handle to a scheduled deadline.
type Timer struct {
	name     string
	deadline time.Time
	fn       func(now time.Time)
	index    int // heap index, -1 when fired or cancelled
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Deadline returns the scheduled fire time.
func (t *Timer) Deadline() time.Time { return t.deadline }

// Scheduler dispatches callbacks at deadlines from a single goroutine.
// Callbacks run sequentially in deadline order; a callback may schedule
// further timers, including one for its own recurrence.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	timers timerHeap
	wake   chan struct{}
}

// New creates a Scheduler on the given clock.
func New(clock Clock) *Scheduler {
	return &Scheduler{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock { return s.clock }

// Schedule registers fn to run at the given time. If at is already in the
// past, the timer fires on the next dispatch.
func (s *Scheduler) Schedule(name string, at time.Time, fn func(now time.Time)) *Timer {
	s.mu.Lock()
	t := &Timer{name: name, deadline: at, fn: fn}
	heap.Push(&s.timers, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// ScheduleAfter registers fn to run after d elapses.
func (s *Scheduler) ScheduleAfter(name string, d time.Duration, fn func(now time.Time)) *Timer {
	return s.Schedule(name, s.clock.Now().Add(d), fn)
}

// Cancel removes a timer. Cancelling an already-fired timer is a no-op.
func (s *Scheduler) Cancel(t *Timer) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index >= 0 {
		heap.Remove(&s.timers, t.index)
	}
}

// CancelAll removes every pending timer.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.index = -1
	}
	s.timers = s.timers[:0]
}

// Pending returns the number of timers waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run dispatches timers until ctx is cancelled. Production use only; tests
// drive the scheduler with AdvanceTo instead.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.timers) == 0 {
			wait = time.Hour
		} else {
			wait = s.timers[0].deadline.Sub(s.clock.Now())
		}
		s.mu.Unlock()

		if wait <= 0 {
			s.AdvanceTo(s.clock.Now())
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-s.clock.After(wait):
			s.AdvanceTo(s.clock.Now())
		}
	}
}

// AdvanceTo fires, in deadline order, every timer due at or before now.
// Callbacks run synchronously on the calling goroutine.
func (s *Scheduler) AdvanceTo(now time.Time) {
	for {
		s.mu.Lock()
		if len(s.timers) == 0 || s.timers[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.timers).(*Timer)
		s.mu.Unlock()

		t.fn(now)
	}
}

// timerHeap is a min-heap of timers by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

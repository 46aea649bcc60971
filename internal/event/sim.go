package event

import (
	"context"
	"sync"
	"time"
)

// SimSource is a deterministic, scriptable event source for tests and the
// daemon's -simulate mode. Events are emitted programmatically with
// caller-controlled timestamps.
type SimSource struct {
	mu      sync.Mutex
	ch      chan Event
	started bool
	stopped bool
	idle    int
}

// NewSimSource creates a simulated source with a buffered stream.
func NewSimSource() *SimSource {
	return &SimSource{ch: make(chan Event, 4096)}
}

// Start implements Source. A stopped source reopens with a fresh
// stream, matching a real hook being re-attached for a new session.
func (s *SimSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.ch = make(chan Event, 4096)
		s.stopped = false
	}
	s.started = true
	return nil
}

// Stop implements Source.
func (s *SimSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.ch)
	return nil
}

// Events implements Source.
func (s *SimSource) Events() <-chan Event { return s.ch }

// IdleSeconds implements Source.
func (s *SimSource) IdleSeconds() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle, nil
}

// SetIdle sets the reported system idle time.
func (s *SimSource) SetIdle(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = seconds
}

// Emit delivers a raw event. Emitting on a stopped source is a no-op so
// scripted scenarios do not race teardown.
func (s *SimSource) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// KeyPress emits a keydown/keyup pair with the given hold duration.
func (s *SimSource) KeyPress(code uint16, at time.Time, hold time.Duration) {
	s.Emit(Event{Kind: KindKeyDown, Timestamp: at, KeyCode: code})
	s.Emit(Event{Kind: KindKeyUp, Timestamp: at.Add(hold), KeyCode: code})
}

// Click emits a mousedown/mouseup pair.
func (s *SimSource) Click(button Button, at time.Time) {
	s.Emit(Event{Kind: KindMouseDown, Timestamp: at, Button: button})
	s.Emit(Event{Kind: KindMouseUp, Timestamp: at.Add(40 * time.Millisecond), Button: button})
}

// Move emits a mouse move to absolute coordinates.
func (s *SimSource) Move(x, y float64, at time.Time) {
	s.Emit(Event{Kind: KindMouseMove, Timestamp: at, X: x, Y: y})
}

// Scroll emits a wheel event.
func (s *SimSource) Scroll(at time.Time) {
	s.Emit(Event{Kind: KindWheel, Timestamp: at})
}

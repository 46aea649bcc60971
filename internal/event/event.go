// Package event defines the raw input event stream consumed by the
// aggregation engine, with platform-specific sources and a scriptable
// simulated source for tests.
package event

import (
	"context"
	"time"
)

// Kind categorizes raw input events.
type Kind int

const (
	KindUnknown Kind = iota
	KindKeyDown
	KindKeyUp
	KindMouseDown
	KindMouseUp
	KindWheel
	KindMouseMove
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindKeyDown:
		return "keydown"
	case KindKeyUp:
		return "keyup"
	case KindMouseDown:
		return "mousedown"
	case KindMouseUp:
		return "mouseup"
	case KindWheel:
		return "wheel"
	case KindMouseMove:
		return "mousemove"
	default:
		return "unknown"
	}
}

// Button identifies a mouse button.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// Event is a single raw input event.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// KeyCode is set for key events.
	KeyCode uint16 `json:"key_code,omitempty"`

	// Button is set for mouse button events.
	Button Button `json:"button,omitempty"`

	// X, Y are set for mouse move events (screen pixels).
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

// Source delivers raw input events and answers system idle queries.
//
// A Source that cannot attach to the OS input hook must still Start
// successfully and deliver an empty stream; the engine degrades to
// zero-activity scoring rather than failing the session.
type Source interface {
	// Start begins event delivery. Events are delivered until ctx is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop halts event delivery and closes the event channel.
	Stop() error

	// Events returns the event stream.
	Events() <-chan Event

	// IdleSeconds reports how long the system has been without user
	// input. Implementations unable to answer return 0 and an error.
	IdleSeconds() (int, error)
}

// NopSource is a Source that never produces events. It stands in when the
// platform hook is unavailable.
type NopSource struct {
	ch chan Event
}

// NewNopSource returns a Source with an always-empty stream.
func NewNopSource() *NopSource {
	return &NopSource{ch: make(chan Event)}
}

// Start implements Source.
func (s *NopSource) Start(ctx context.Context) error { return nil }

// Stop implements Source.
func (s *NopSource) Stop() error { return nil }

// Events implements Source.
func (s *NopSource) Events() <-chan Event { return s.ch }

// IdleSeconds implements Source.
func (s *NopSource) IdleSeconds() (int, error) { return 0, nil }

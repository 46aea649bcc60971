// Package notify carries engine notifications to outer layers over a
// buffered channel. The engine publishes without blocking; a slow or
// absent consumer costs dropped notifications, never a stalled tick.
package notify

import (
	"log/slog"
	"time"

	"monitord/internal/logging"
	"monitord/internal/window"
)

// Notification is the tagged union delivered to subscribers.
type Notification interface {
	Topic() string
}

type SessionStarted struct {
	SessionID string
	Mode      string
	Task      string
}

func (SessionStarted) Topic() string { return "session:started" }

type SessionStopped struct {
	SessionID string
}

func (SessionStopped) Topic() string { return "session:stopped" }

// MidnightStop is distinct from a manual stop so the UI can explain why
// tracking ended on its own.
type MidnightStop struct {
	SessionID    string
	PreviousDate string
	NewDate      string
	Message      string
}

func (MidnightStop) Topic() string { return "session:midnight-stop" }

type TrackingPaused struct {
	SessionID string
}

func (TrackingPaused) Topic() string { return "tracking:paused" }

type TrackingResumed struct {
	SessionID string
}

func (TrackingResumed) Topic() string { return "tracking:resumed" }

type InactivityDetected struct {
	SessionID string
	Message   string
}

func (InactivityDetected) Topic() string { return "inactivity:detected" }

type WindowComplete struct {
	SessionID   string
	WindowStart time.Time
	WindowEnd   time.Time
	Periods     []window.ActivityPeriod
	Screenshot  *window.Screenshot
}

func (WindowComplete) Topic() string { return "window:complete" }

// Bus fans notifications out to a single consumer channel.
type Bus struct {
	ch  chan Notification
	log *slog.Logger
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{
		ch:  make(chan Notification, capacity),
		log: logging.Default().Component("notify"),
	}
}

// Publish enqueues without blocking. Dropped notifications are logged
// with their topic so a stuck consumer is visible.
func (b *Bus) Publish(n Notification) {
	select {
	case b.ch <- n:
	default:
		b.log.Warn("notification dropped, channel full", "topic", n.Topic())
	}
}

// C is the consumer side.
func (b *Bus) C() <-chan Notification {
	return b.ch
}

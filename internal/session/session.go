// Package session drives the tracking lifecycle: it owns the per-minute
// scoring tick, the window manager, the spike detector, idle sampling,
// midnight rollover, and the inactivity auto-stop.
package session

import (
	"context"
	"errors"
	"time"

	"monitord/internal/window"
)

// Mode distinguishes billable from internal tracking.
type Mode string

const (
	ModeClientHours  Mode = "client_hours"
	ModeCommandHours Mode = "command_hours"
)

// State is the controller's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateTracking
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyTask rejects a session start without a task description.
	ErrEmptyTask = errors.New("session: task must not be empty")

	// ErrNoUser rejects a session start when no user identity resolves.
	ErrNoUser = errors.New("session: no resolvable user identity")

	// ErrNotTracking rejects operations that need an active session.
	ErrNotTracking = errors.New("session: not tracking")

	// ErrNotPaused rejects resume when tracking was never paused.
	ErrNotPaused = errors.New("session: not paused")
)

// Session is one tracked work stretch for one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Mode      Mode      `json:"mode"`
	ProjectID string    `json:"projectId,omitempty"`
	Task      string    `json:"task"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitempty"`
	IsActive  bool      `json:"isActive"`
}

// User is the identity activity is attributed to.
type User struct {
	ID    string
	Name  string
	Email string
}

// Recorder is the persistence collaborator. The controller treats every
// call as best-effort: a failed write is counted and logged, never
// retried, and never stops the engine.
type Recorder interface {
	CurrentUser(ctx context.Context) (User, error)
	CreateSession(ctx context.Context, s Session) error
	EndSession(ctx context.Context, sessionID string, at time.Time) error
	SaveWindow(ctx context.Context, sessionID string, w window.Completed) error
}

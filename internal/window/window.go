// Package window buckets scored activity periods into fixed ten-minute
// windows aligned to the wall clock. Windows tile time exactly: the next
// window opens the instant the previous one completes, whether completion
// came from the timer, an overflow, or a late period.
package window

import (
	"log/slog"
	"sync"
	"time"

	"monitord/internal/collector"
	"monitord/internal/logging"
	"monitord/internal/sched"
	"monitord/internal/spike"
)

// ActivityPeriod is one scored minute of tracked activity. Immutable once
// handed to the manager, except for the screenshot id attached when the
// owning window completes.
type ActivityPeriod struct {
	ID             string             `json:"id"`
	SessionID      string             `json:"sessionId"`
	UserID         string             `json:"userId"`
	PeriodStart    time.Time          `json:"periodStart"`
	PeriodEnd      time.Time          `json:"periodEnd"`
	Mode           string             `json:"mode"`
	ActivityScore  int                `json:"activityScore"`
	IsValid        bool               `json:"isValid"`
	Classification string             `json:"classification"`
	Breakdown      collector.Breakdown `json:"metricsBreakdown"`
	Spike          spike.Result       `json:"spikeDetection"`
	ScreenshotID   string             `json:"screenshotId,omitempty"`
}

// Screenshot is opaque to the engine; only capturedAt matters here.
type Screenshot struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	CapturedAt time.Time `json:"capturedAt"`
	LocalPath  string    `json:"localPath"`
	ThumbPath  string    `json:"thumbPath,omitempty"`
	Mode       string    `json:"mode"`
	Notes      string    `json:"notes,omitempty"`
}

// Completed is an emitted window.
type Completed struct {
	Start      time.Time
	End        time.Time
	Periods    []ActivityPeriod
	Screenshot *Screenshot
}

// TotalScore sums the activity scores of the window's periods.
func (c Completed) TotalScore() int {
	total := 0
	for _, p := range c.Periods {
		total += p.ActivityScore
	}
	return total
}

// Manager owns the currently open window. All methods are safe for
// concurrent use.
type Manager struct {
	mu sync.Mutex

	sch        *sched.Scheduler
	emit       func(Completed) bool
	log        *slog.Logger
	windowLen  time.Duration
	maxPeriods int
	grace      time.Duration

	active  bool
	start   time.Time
	end     time.Time
	periods []ActivityPeriod
	shot    *Screenshot
	timer   *sched.Timer
}

// timerBuffer delays the completion timer slightly past the boundary so
// a period produced exactly at windowEnd lands before the timer fires.
const timerBuffer = time.Second

type Options struct {
	WindowLen    time.Duration
	MaxPeriods   int
	OverdueGrace time.Duration
}

// NewManager builds an idle manager. emit receives every completed
// window and must not call back into the manager; returning false sends
// the manager idle instead of opening a successor window.
func NewManager(sch *sched.Scheduler, opts Options, emit func(Completed) bool) *Manager {
	return &Manager{
		sch:        sch,
		emit:       emit,
		log:        logging.Default().Component("window"),
		windowLen:  opts.WindowLen,
		maxPeriods: opts.MaxPeriods,
		grace:      opts.OverdueGrace,
	}
}

// alignStart floors t to the window grid: for ten-minute windows the
// start minute is one of 0, 10, 20, 30, 40, 50.
func alignStart(t time.Time, windowLen time.Duration) time.Time {
	t = t.Truncate(time.Minute)
	winMinutes := int(windowLen / time.Minute)
	over := t.Minute() % winMinutes
	return t.Add(-time.Duration(over) * time.Minute)
}

// Start opens the first window of a session, aligned to the grid around
// the current clock time.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	m.openLocked(alignStart(m.sch.Clock().Now(), m.windowLen))
}

// Stop completes any open window and goes idle. The partial window is
// still emitted; its periods are already scored and must not be lost.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false
	m.completeLocked()
}

// Active reports whether a window is open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Bounds returns the open window's [start, end). Zero times when idle.
func (m *Manager) Bounds() (start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start, m.end
}

// AddPeriod buckets one scored period into the open window, completing
// and rolling the window forward as needed. Periods older than the open
// window are dropped; periods at or past its end force completion first,
// so nothing is ever discarded for arriving late.
func (m *Manager) AddPeriod(p ActivityPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		m.log.Warn("period dropped, no session", "period_start", p.PeriodStart)
		return
	}

	// Safety net: a missed timer (suspend, clock jump) leaves the window
	// open long past its end. Close it before classifying the period.
	if now := m.sch.Clock().Now(); now.Sub(m.end) > m.grace {
		m.log.Warn("window overdue, forcing completion",
			"window_end", m.end, "now", now)
		m.completeLocked()
	}

	m.addLocked(p)
}

func (m *Manager) addLocked(p ActivityPeriod) {
	switch {
	case p.PeriodStart.Before(m.start):
		m.log.Warn("stale period dropped",
			"period_start", p.PeriodStart, "window_start", m.start)

	case p.PeriodStart.Before(m.end):
		if len(m.periods) >= m.maxPeriods {
			m.log.Warn("window overflow, forcing completion",
				"window_start", m.start, "periods", len(m.periods))
			m.completeLocked()
			m.addLocked(p)
			return
		}
		m.periods = append(m.periods, p)

	default: // p.PeriodStart >= m.end
		m.completeLocked()
		m.addLocked(p)
	}
}

// SetScreenshot attaches a screenshot to the open window when its
// capture time falls inside the window; otherwise it is discarded.
func (m *Manager) SetScreenshot(s Screenshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	if s.CapturedAt.Before(m.start) || !s.CapturedAt.Before(m.end) {
		m.log.Debug("screenshot outside window, discarded",
			"captured_at", s.CapturedAt, "window_start", m.start)
		return
	}
	m.shot = &s
}

func (m *Manager) openLocked(start time.Time) {
	m.start = start
	m.end = start.Add(m.windowLen)
	m.periods = nil
	m.shot = nil

	if m.timer != nil {
		m.sch.Cancel(m.timer)
	}

	// An already-elapsed window boundary completes on the spot.
	if !m.sch.Clock().Now().Before(m.end) {
		m.completeLocked()
		return
	}

	m.timer = m.sch.Schedule("window-complete", m.end.Add(timerBuffer), m.onTimer)
}

func (m *Manager) onTimer(time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.timer = nil
	m.completeLocked()
}

// completeLocked emits the open window and, while the session is still
// active, opens the successor at the exact end of the one just emitted.
func (m *Manager) completeLocked() {
	if m.timer != nil {
		m.sch.Cancel(m.timer)
		m.timer = nil
	}

	done := Completed{Start: m.start, End: m.end, Periods: m.periods, Screenshot: m.shot}
	if done.Screenshot != nil {
		for i := range done.Periods {
			done.Periods[i].ScreenshotID = done.Screenshot.ID
		}
	}

	m.log.Debug("window complete",
		"window_start", done.Start, "periods", len(done.Periods))

	next := m.end
	m.start, m.end, m.periods, m.shot = time.Time{}, time.Time{}, nil, nil

	if m.emit != nil && !m.emit(done) {
		m.active = false
	}
	if m.active {
		m.openLocked(next)
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"monitord/internal/collector"
	"monitord/internal/config"
	"monitord/internal/event"
	"monitord/internal/logging"
	"monitord/internal/notify"
	"monitord/internal/sched"
	"monitord/internal/spike"
	"monitord/internal/telemetry"
	"monitord/internal/window"
)

// idleAfter is how long without input a sampled second counts as idle.
const idleAfter = 30

// Controller is the session lifecycle state machine. One controller
// serves the whole process; sessions come and go underneath it.
type Controller struct {
	mu sync.Mutex

	cfg    *config.Config
	sch    *sched.Scheduler
	source event.Source
	col    *collector.Collector
	rec    Recorder
	bus    *notify.Bus
	log    *slog.Logger

	state State
	sess  *Session
	det   *spike.Detector
	win   *window.Manager

	periodStart time.Time
	nextTick    time.Time
	nextSample  time.Time
	periodTimer *sched.Timer
	idleTimer   *sched.Timer
	midnight    *sched.Timer

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}

	// Guarded by winMu, not mu: the window manager invokes onWindow
	// from inside its own completion path, sometimes while mu is held
	// by the tick that forced the completion.
	winMu         sync.Mutex
	winSession    Session
	zeroWindows   int
	inactiveLimit int
	stopping      bool

	// Completed windows are written by a dedicated goroutine so a slow
	// database never stalls the completion path. Created per session;
	// stopLocked drains it before the session-end row is written.
	writeCh   chan persistJob
	writeDone chan struct{}
}

type persistJob struct {
	sess Session
	win  window.Completed
}

func NewController(cfg *config.Config, sch *sched.Scheduler, source event.Source, rec Recorder, bus *notify.Bus) *Controller {
	c := &Controller{
		cfg:    cfg,
		sch:    sch,
		source: source,
		col:    collector.New(cfg),
		rec:    rec,
		bus:    bus,
		log:    logging.Default().Component("session"),
	}
	c.win = window.NewManager(sch, window.Options{
		WindowLen:    time.Duration(cfg.Session.WindowMinutes) * time.Minute,
		MaxPeriods:   cfg.Session.MaxPeriodsPerWindow,
		OverdueGrace: time.Duration(cfg.Session.OverdueGraceSeconds) * time.Second,
	}, c.onWindow)
	return c
}

// UpdateConfig applies a hot-reloaded configuration. Lifecycle settings
// take effect at the next session; scoring settings apply immediately.
func (c *Controller) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.col.UpdateConfig(cfg)
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Counters exposes the live per-minute counters for status surfaces.
func (c *Controller) Counters() collector.Counters {
	return c.col.Snapshot()
}

// Current returns a copy of the active session, if any.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Session{}, false
	}
	return *c.sess, c.sess.IsActive
}

// Start begins a new session. A session already tracking or paused is
// stopped and persisted first.
func (c *Controller) Start(ctx context.Context, mode Mode, projectID, task string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task == "" {
		return Session{}, ErrEmptyTask
	}
	user, err := c.rec.CurrentUser(ctx)
	if err != nil || user.ID == "" {
		return Session{}, fmt.Errorf("%w: %v", ErrNoUser, err)
	}

	if c.state != StateStopped {
		c.log.Info("stopping previous session before start", "session_id", c.sess.ID)
		c.stopLocked(ctx, true, notify.SessionStopped{SessionID: c.sess.ID})
	}

	now := c.sch.Clock().Now()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Mode:      mode,
		ProjectID: projectID,
		Task:      task,
		StartTime: now,
		IsActive:  true,
	}
	if err := c.rec.CreateSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	c.sess = &sess

	// Fresh histories per session: both detectors judge against this
	// session only.
	c.col.ResetSession()
	c.det = spike.New(c.cfg.Spike)

	c.winMu.Lock()
	c.winSession = sess
	c.zeroWindows = 0
	c.inactiveLimit = c.cfg.Session.InactiveWindowLimit
	c.stopping = false
	c.writeCh = make(chan persistJob, 16)
	c.writeDone = make(chan struct{})
	c.winMu.Unlock()
	go c.runWriter(c.writeCh, c.writeDone)

	c.win.Start()
	if err := c.source.Start(ctx); err != nil {
		c.log.Warn("input source unavailable, tracking degraded", "error", err)
	}
	c.attachLocked()

	c.periodStart = now
	c.nextTick = now.Truncate(time.Minute).Add(time.Minute)
	c.periodTimer = c.sch.Schedule("period-tick", c.nextTick, c.onPeriodTick)
	c.armMidnightLocked(now)

	c.state = StateTracking
	telemetry.SessionsStarted.Inc()
	telemetry.ActiveSession.Set(1)
	c.log.Info("session started",
		"session_id", sess.ID, "mode", string(mode), "task", task)
	c.bus.Publish(notify.SessionStarted{SessionID: sess.ID, Mode: string(mode), Task: task})
	return sess, nil
}

// Stop ends the active session: the in-flight period is scored and
// flushed, the open window completes, listeners and timers detach, and
// the session is marked inactive.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrNotTracking
	}
	c.stopLocked(ctx, true, notify.SessionStopped{SessionID: c.sess.ID})
	return nil
}

// Pause suspends tracking without ending the session. The pending
// period is flushed; rolling histories stay intact for resume.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateTracking {
		return ErrNotTracking
	}

	c.savePeriodLocked(c.sch.Clock().Now())
	c.detachLocked()
	c.cancelPeriodTimersLocked()

	c.state = StatePaused
	c.log.Info("tracking paused", "session_id", c.sess.ID)
	c.bus.Publish(notify.TrackingPaused{SessionID: c.sess.ID})
	return nil
}

// Resume continues a paused session. No new session, window reset, or
// history reset happens; the minute grid simply picks back up.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return ErrNotPaused
	}

	now := c.sch.Clock().Now()
	c.attachLocked()
	c.periodStart = now
	c.nextTick = now.Truncate(time.Minute).Add(time.Minute)
	c.periodTimer = c.sch.Schedule("period-tick", c.nextTick, c.onPeriodTick)

	c.state = StateTracking
	c.log.Info("tracking resumed", "session_id", c.sess.ID)
	c.bus.Publish(notify.TrackingResumed{SessionID: c.sess.ID})
	return nil
}

// stopLocked tears the session down. flush scores the in-flight period
// first; done is published after the session is marked inactive.
func (c *Controller) stopLocked(ctx context.Context, flush bool, done notify.Notification) {
	now := c.sch.Clock().Now()

	if flush && c.state == StateTracking {
		c.savePeriodLocked(now)
	}

	c.winMu.Lock()
	c.stopping = true
	c.winMu.Unlock()

	c.win.Stop()

	// The final window is enqueued by now; wait for the writer so the
	// session-end row lands after every window row.
	if c.writeCh != nil {
		close(c.writeCh)
		<-c.writeDone
		c.writeCh, c.writeDone = nil, nil
	}

	c.detachLocked()
	c.cancelPeriodTimersLocked()
	if c.midnight != nil {
		c.sch.Cancel(c.midnight)
		c.midnight = nil
	}
	if err := c.source.Stop(); err != nil {
		c.log.Warn("input source stop failed", "error", err)
	}

	if err := c.rec.EndSession(ctx, c.sess.ID, now); err != nil {
		c.log.Error("persist session end failed", "error", err, "session_id", c.sess.ID)
		telemetry.PersistFailures.Inc()
	}
	c.sess.IsActive = false
	c.sess.EndTime = now

	c.state = StateStopped
	telemetry.SessionsStopped.Inc()
	telemetry.ActiveSession.Set(0)
	c.log.Info("session stopped", "session_id", c.sess.ID)
	if done != nil {
		c.bus.Publish(done)
	}
}

// onPeriodTick fires on every wall-clock minute boundary while tracking.
func (c *Controller) onPeriodTick(time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateTracking {
		return
	}

	end := c.nextTick
	c.savePeriodLocked(end)
	c.nextTick = end.Add(time.Duration(c.cfg.Session.PeriodSeconds) * time.Second)
	c.periodTimer = c.sch.Schedule("period-tick", c.nextTick, c.onPeriodTick)
}

// savePeriodLocked scores the elapsed minute and hands the period to
// the window manager. The collector's buffers and the spike detector's
// history survive; only the per-minute counters reset.
func (c *Controller) savePeriodLocked(end time.Time) {
	duration := end.Sub(c.periodStart)
	if duration <= 0 {
		return
	}

	counters := c.col.Snapshot()
	spikeRes := c.det.Analyze(counters)
	breakdown := c.col.Analyze(duration)

	score := breakdown.Score.FinalScore
	conf := spikeRes.Confidence / 100
	isValid := true

	switch {
	case spikeRes.IsBot && conf >= c.cfg.Bot.HardConfidence:
		score = 0
		isValid = false
		telemetry.BotVerdicts.Inc()
		c.log.Warn("period judged automated",
			"session_id", c.sess.ID, "reason", spikeRes.Reason,
			"spike_score", spikeRes.SpikeScore, "confidence", spikeRes.Confidence)
	case spikeRes.HasSpike && conf >= c.cfg.Bot.SoftConfidence:
		score = int(float64(score) * (1 - spikeRes.SpikeScore/100*conf))
		c.log.Info("period score discounted for spike",
			"session_id", c.sess.ID, "spike_score", spikeRes.SpikeScore)
	}

	if m := c.cfg.Score.ServerMultiplier; m != 1.0 {
		score = int(float64(score) * m)
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	c.win.AddPeriod(window.ActivityPeriod{
		ID:             uuid.NewString(),
		SessionID:      c.sess.ID,
		UserID:         c.sess.UserID,
		PeriodStart:    c.periodStart,
		PeriodEnd:      end,
		Mode:           string(c.sess.Mode),
		ActivityScore:  score,
		IsValid:        isValid,
		Classification: breakdown.Class.Category,
		Breakdown:      breakdown,
		Spike:          spikeRes,
	})

	c.col.ResetPeriod()
	c.periodStart = end
	telemetry.PeriodsScored.Inc()
}

// SetScreenshot forwards an externally captured screenshot to the open
// window, which keeps it only if the capture time falls inside.
func (c *Controller) SetScreenshot(s window.Screenshot) {
	c.win.SetScreenshot(s)
}

// onWindow receives every completed window. Runs inside the window
// manager's completion path; must not call back into the manager, and
// must not take c.mu (the forcing tick may hold it). Returns false to
// stop the manager from opening a successor.
func (c *Controller) onWindow(w window.Completed) bool {
	c.winMu.Lock()
	defer c.winMu.Unlock()

	sess := c.winSession
	telemetry.WindowsComplete.Inc()

	if c.stopping {
		c.persistWindow(sess, w)
		return false
	}

	if isZeroWindow(w) {
		c.zeroWindows++
		if c.zeroWindows >= c.inactiveLimit {
			// The window that confirmed inactivity is discarded, not
			// persisted; the session ends via a scheduler hop since
			// the manager's lock is still held here.
			c.log.Info("inactivity detected, stopping session",
				"session_id", sess.ID, "zero_windows", c.zeroWindows)
			c.sch.ScheduleAfter("inactivity-stop", 0, c.onInactivityStop)
			return false
		}
	} else {
		c.zeroWindows = 0
	}

	c.persistWindow(sess, w)
	return true
}

// persistWindow hands a completed window to the writer goroutine.
// Called with winMu held; the channel send must stay cheap.
func (c *Controller) persistWindow(sess Session, w window.Completed) {
	if len(w.Periods) == 0 && w.Screenshot == nil {
		return
	}
	c.writeCh <- persistJob{sess: sess, win: w}
}

// runWriter drains the persistence queue for one session. It owns the
// database calls that used to run inside the completion path.
func (c *Controller) runWriter(jobs <-chan persistJob, done chan<- struct{}) {
	defer close(done)
	for job := range jobs {
		sess, w := job.sess, job.win
		c.bus.Publish(notify.WindowComplete{
			SessionID:   sess.ID,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			Periods:     w.Periods,
			Screenshot:  w.Screenshot,
		})
		if err := c.rec.SaveWindow(context.Background(), sess.ID, w); err != nil {
			c.log.Error("persist window failed",
				"error", err, "session_id", sess.ID, "window_start", w.Start)
			telemetry.PersistFailures.Inc()
		}
	}
}

func (c *Controller) onInactivityStop(time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	telemetry.InactivityStops.Inc()
	msg := "Session stopped after consecutive windows with no activity."
	c.stopLocked(context.Background(), false,
		notify.InactivityDetected{SessionID: c.sess.ID, Message: msg})
}

// armMidnightLocked schedules the UTC midnight rollover.
func (c *Controller) armMidnightLocked(now time.Time) {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	c.midnight = c.sch.Schedule("midnight-rollover", next, c.onMidnight)
}

// onMidnight ends the running day's session and re-arms for the next
// midnight. Distinct from a manual stop so outer layers can prompt the
// user to start a fresh day.
func (c *Controller) onMidnight(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		c.armMidnightLocked(now)
		return
	}

	prev := now.UTC().AddDate(0, 0, -1).Format("2006-01-02")
	next := now.UTC().Format("2006-01-02")
	telemetry.MidnightStops.Inc()
	c.stopLocked(context.Background(), true, notify.MidnightStop{
		SessionID:    c.sess.ID,
		PreviousDate: prev,
		NewDate:      next,
		Message:      "Tracking stopped at midnight UTC. Start a new session to continue.",
	})
	c.armMidnightLocked(now)
}

// attachLocked starts feeding input events and idle samples into the
// collector.
func (c *Controller) attachLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel
	c.pumpDone = make(chan struct{})
	go c.pump(ctx)

	interval := time.Duration(c.cfg.Session.IdleSampleSeconds) * time.Second
	c.nextSample = c.sch.Clock().Now().Add(interval)
	c.idleTimer = c.sch.Schedule("idle-sample", c.nextSample, c.onIdleSample)
}

func (c *Controller) detachLocked() {
	if c.pumpCancel != nil {
		c.pumpCancel()
		<-c.pumpDone
		c.pumpCancel = nil
	}
}

func (c *Controller) cancelPeriodTimersLocked() {
	if c.periodTimer != nil {
		c.sch.Cancel(c.periodTimer)
		c.periodTimer = nil
	}
	if c.idleTimer != nil {
		c.sch.Cancel(c.idleTimer)
		c.idleTimer = nil
	}
}

// pump drains the input source into the collector until detached.
func (c *Controller) pump(ctx context.Context) {
	defer close(c.pumpDone)
	events := c.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.col.Record(ev)
		}
	}
}

// isZeroWindow reports whether a completed window carried no scored
// activity. A window holding only a screenshot still counts as zero.
func isZeroWindow(w window.Completed) bool {
	for _, p := range w.Periods {
		if p.ActivityScore > 0 {
			return false
		}
	}
	return true
}

// onIdleSample polls the OS idle time once per sample interval and
// books the second as active or idle. Deadlines chain absolutely, like
// the period tick, so a late dispatch catches up sample by sample
// instead of silently stretching the interval.
func (c *Controller) onIdleSample(time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateTracking {
		return
	}

	if idle, err := c.source.IdleSeconds(); err == nil {
		c.col.AddTimeSample(idle >= idleAfter)
	}

	interval := time.Duration(c.cfg.Session.IdleSampleSeconds) * time.Second
	c.nextSample = c.nextSample.Add(interval)
	c.idleTimer = c.sch.Schedule("idle-sample", c.nextSample, c.onIdleSample)
}

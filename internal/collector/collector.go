package collector

import (
	"fmt"
	"math"
	"sync"
	"time"

	"monitord/internal/config"
	"monitord/internal/event"
)

// doubleClickWindow is the maximum gap between two clicks counted as a
// double click.
const doubleClickWindow = 500 * time.Millisecond

// suspiciousIntervalMs is the inter-keystroke gap no human typist produces.
const suspiciousIntervalMs = 10.0

// position is one sampled cursor location.
type position struct {
	X, Y float64
	T    time.Time
}

// Counters are the raw per-minute counters the session controller resets
// after every period. Rolling buffers are not part of this reset.
type Counters struct {
	KeyHits              int
	ProductiveKeyHits    int
	NavigationKeyHits    int
	UniqueKeys           int
	ProductiveUniqueKeys int

	Clicks       int
	LeftClicks   int
	RightClicks  int
	DoubleClicks int
	Scrolls      int

	DistancePixels float64

	ActiveSeconds int
	IdleSeconds   int

	SuspiciousIntervals int
}

// Collector maintains rolling per-session event buffers and per-minute
// counters, and produces the scored metrics breakdown for each period.
//
// All entry points are safe for concurrent use; the input hook and the
// engine's timers touch the same state.
type Collector struct {
	mu sync.Mutex

	scoreCfg   config.ScoreConfig
	botCfg     config.BotConfig
	caps       config.BuffersConfig
	productive map[uint16]bool
	navigation map[uint16]bool

	// Rolling per-session buffers, capped for memory.
	keyTimes   []time.Time
	keyCodes   []uint16
	keyHolds   []float64 // milliseconds
	clickTimes []time.Time
	positions  []position

	// Per-minute state.
	counters    Counters
	uniqueKeys  map[uint16]int
	uniqueProd  map[uint16]bool
	lastKeyTime time.Time
	lastPos     *position

	pendingDown   map[uint16]time.Time
	lastClickTime time.Time
}

// New creates a Collector from configuration.
func New(cfg *config.Config) *Collector {
	c := &Collector{pendingDown: make(map[uint16]time.Time)}
	c.applyConfig(cfg)
	c.resetPeriodLocked()
	return c
}

// UpdateConfig applies new tunables. Rolling buffers survive the update.
func (c *Collector) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyConfig(cfg)
}

func (c *Collector) applyConfig(cfg *config.Config) {
	c.scoreCfg = cfg.Score
	c.botCfg = cfg.Bot
	c.caps = cfg.Buffers
	c.productive = cfg.Keys.ProductiveSet()
	c.navigation = cfg.Keys.NavigationSet()
}

// Record ingests one raw input event.
func (c *Collector) Record(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case event.KindKeyDown:
		c.recordKeyDown(ev)
	case event.KindKeyUp:
		c.recordKeyUp(ev)
	case event.KindMouseDown:
		c.recordMouseDown(ev)
	case event.KindMouseUp:
		// Up events close the click pair; counts were taken on down.
	case event.KindWheel:
		c.counters.Scrolls++
	case event.KindMouseMove:
		c.recordMouseMove(ev)
	}
}

func (c *Collector) recordKeyDown(ev event.Event) {
	c.counters.KeyHits++
	c.uniqueKeys[ev.KeyCode]++
	if c.productive[ev.KeyCode] {
		c.counters.ProductiveKeyHits++
		c.uniqueProd[ev.KeyCode] = true
	} else if c.navigation[ev.KeyCode] {
		c.counters.NavigationKeyHits++
	}

	if !c.lastKeyTime.IsZero() {
		gap := ev.Timestamp.Sub(c.lastKeyTime)
		if gap >= 0 && float64(gap.Milliseconds()) < suspiciousIntervalMs {
			c.counters.SuspiciousIntervals++
		}
	}
	c.lastKeyTime = ev.Timestamp

	c.keyTimes = appendCapped(c.keyTimes, ev.Timestamp, c.caps.Keystrokes)
	c.keyCodes = appendCapped(c.keyCodes, ev.KeyCode, c.caps.Keystrokes)
	c.pendingDown[ev.KeyCode] = ev.Timestamp
}

func (c *Collector) recordKeyUp(ev event.Event) {
	down, ok := c.pendingDown[ev.KeyCode]
	if !ok {
		return
	}
	delete(c.pendingDown, ev.KeyCode)

	hold := ev.Timestamp.Sub(down)
	if hold > 0 && hold < 5*time.Second {
		c.keyHolds = appendCapped(c.keyHolds, float64(hold.Milliseconds()), c.caps.KeyHolds)
	}
}

func (c *Collector) recordMouseDown(ev event.Event) {
	c.counters.Clicks++
	switch ev.Button {
	case event.ButtonLeft:
		c.counters.LeftClicks++
	case event.ButtonRight:
		c.counters.RightClicks++
	}

	if !c.lastClickTime.IsZero() && ev.Timestamp.Sub(c.lastClickTime) <= doubleClickWindow {
		c.counters.DoubleClicks++
	}
	c.lastClickTime = ev.Timestamp

	c.clickTimes = appendCapped(c.clickTimes, ev.Timestamp, c.caps.Clicks)
}

func (c *Collector) recordMouseMove(ev event.Event) {
	pos := position{X: ev.X, Y: ev.Y, T: ev.Timestamp}

	if c.lastPos != nil {
		dx := pos.X - c.lastPos.X
		dy := pos.Y - c.lastPos.Y
		c.counters.DistancePixels += math.Hypot(dx, dy)
	}
	c.lastPos = &pos

	c.positions = appendCapped(c.positions, pos, c.caps.MousePositions)
}

// AddTimeSample records one second of tracked time as active or idle.
func (c *Collector) AddTimeSample(idle bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idle {
		c.counters.IdleSeconds++
	} else {
		c.counters.ActiveSeconds++
	}
}

// Snapshot returns a copy of the current per-minute counters.
func (c *Collector) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collector) snapshotLocked() Counters {
	counters := c.counters
	counters.UniqueKeys = len(c.uniqueKeys)
	counters.ProductiveUniqueKeys = len(c.uniqueProd)
	return counters
}

// ResetPeriod clears only the per-minute counters. Rolling buffers persist
// across periods within a session; cross-period pattern detection requires
// continuity.
func (c *Collector) ResetPeriod() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetPeriodLocked()
}

func (c *Collector) resetPeriodLocked() {
	c.counters = Counters{}
	c.uniqueKeys = make(map[uint16]int)
	c.uniqueProd = make(map[uint16]bool)
	c.lastKeyTime = time.Time{}
}

// ResetSession clears everything, rolling buffers included. Called when a
// new session starts.
func (c *Collector) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keyTimes = nil
	c.keyCodes = nil
	c.keyHolds = nil
	c.clickTimes = nil
	c.positions = nil
	c.pendingDown = make(map[uint16]time.Time)
	c.lastClickTime = time.Time{}
	c.lastPos = nil
	c.resetPeriodLocked()
}

// Analyze produces the full breakdown and raw score for the period that
// just elapsed. It does not reset any state.
func (c *Collector) Analyze(periodDuration time.Duration) Breakdown {
	c.mu.Lock()
	defer c.mu.Unlock()

	counters := c.snapshotLocked()
	minutes := periodDuration.Minutes()
	if minutes <= 0 {
		minutes = 1
	}

	intervals := c.keyIntervalsLocked()

	kb := KeyboardMetrics{
		TotalKeystrokes:      counters.KeyHits,
		ProductiveKeystrokes: counters.ProductiveKeyHits,
		NavigationKeystrokes: counters.NavigationKeyHits,
		UniqueKeys:           counters.UniqueKeys,
		ProductiveUniqueKeys: counters.ProductiveUniqueKeys,
		KeysPerMinute:        float64(counters.KeyHits) / minutes,
		TypingRhythm:         typingRhythm(intervals),
	}

	mouse := MouseMetrics{
		TotalClicks:       counters.Clicks,
		LeftClicks:        counters.LeftClicks,
		RightClicks:       counters.RightClicks,
		DoubleClicks:      counters.DoubleClicks,
		TotalScrolls:      counters.Scrolls,
		DistancePixels:    counters.DistancePixels,
		DistancePerMinute: counters.DistancePixels / minutes,
		MovementPattern:   c.movementPatternLocked(),
	}

	kbBot := c.analyzeKeyboardLocked(intervals)
	mouseBot := c.analyzeMouseLocked()

	bot := BotDetection{
		KeyboardBotDetected: kbBot.Confidence > c.botCfg.FlagThreshold,
		MouseBotDetected:    mouseBot.Confidence > c.botCfg.FlagThreshold,
		Confidence:          maxFloat(kbBot.Confidence, mouseBot.Confidence),
		Details:             append(kbBot.Details, mouseBot.Details...),
	}

	durationSec := int(periodDuration.Seconds())
	tm := TimeMetrics{
		PeriodDurationSeconds: durationSec,
		ActiveSeconds:         counters.ActiveSeconds,
		IdleSeconds:           counters.IdleSeconds,
	}
	if sampled := counters.ActiveSeconds + counters.IdleSeconds; sampled > 0 {
		tm.ActivityPercentage = 100 * float64(counters.ActiveSeconds) / float64(sampled)
	}

	score := c.calculateScoreLocked(counters, minutes, bot, tm)
	class := classify(counters, bot, tm)

	return Breakdown{
		Keyboard:     kb,
		Mouse:        mouse,
		BotDetection: bot,
		TimeMetrics:  tm,
		Score:        score,
		Class:        class,
	}
}

// keyIntervalsLocked returns inter-keystroke gaps in milliseconds across
// the rolling keystroke buffer.
func (c *Collector) keyIntervalsLocked() []float64 {
	if len(c.keyTimes) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(c.keyTimes)-1)
	for i := 1; i < len(c.keyTimes); i++ {
		gap := c.keyTimes[i].Sub(c.keyTimes[i-1])
		if gap < 0 {
			continue
		}
		// Gaps above 10s are pauses, not typing rhythm.
		if gap > 10*time.Second {
			continue
		}
		intervals = append(intervals, float64(gap.Nanoseconds())/1e6)
	}
	return intervals
}

func typingRhythm(intervals []float64) TypingRhythm {
	if len(intervals) < 2 {
		return TypingRhythm{}
	}
	avg := mean(intervals)
	sd := stdDev(intervals)
	return TypingRhythm{
		// Human rhythm varies; "consistent" below this level reads as
		// generated input elsewhere in the analysis.
		Consistent:     sd < 30 && avg > 0,
		AvgIntervalMs:  avg,
		StdDeviationMs: sd,
	}
}

func (c *Collector) movementPatternLocked() MovementPattern {
	if len(c.positions) < 3 {
		return MovementPattern{}
	}

	speeds := c.speedsLocked()
	if len(speeds) == 0 {
		return MovementPattern{}
	}

	maxSpeed := 0.0
	for _, s := range speeds {
		if s > maxSpeed {
			maxSpeed = s
		}
	}

	return MovementPattern{
		Smooth:   coefficientOfVariation(speeds) < 0.6,
		AvgSpeed: mean(speeds),
		MaxSpeed: maxSpeed,
	}
}

// speedsLocked returns px/ms speeds between consecutive position samples.
func (c *Collector) speedsLocked() []float64 {
	var speeds []float64
	for i := 1; i < len(c.positions); i++ {
		a, b := c.positions[i-1], c.positions[i]
		dt := b.T.Sub(a.T)
		if dt <= 0 || dt > 2*time.Second {
			continue
		}
		dist := math.Hypot(b.X-a.X, b.Y-a.Y)
		speeds = append(speeds, dist/float64(dt.Milliseconds()+1))
	}
	return speeds
}

// classify tags the behavioral character of the period.
func classify(counters Counters, bot BotDetection, tm TimeMetrics) Classification {
	var tags []string

	if bot.KeyboardBotDetected || bot.MouseBotDetected {
		tags = append(tags, "bot-suspect")
	}
	if tm.ActivityPercentage > 0 && tm.ActivityPercentage < 30 {
		tags = append(tags, "low-activity")
	}

	total := counters.KeyHits + counters.Clicks + counters.Scrolls
	if total == 0 && counters.DistancePixels < 50 {
		return Classification{Category: "idle", Confidence: 0.9, Tags: tags}
	}

	prodRatio := 0.0
	navRatio := 0.0
	if counters.KeyHits > 0 {
		prodRatio = float64(counters.ProductiveKeyHits) / float64(counters.KeyHits)
		navRatio = float64(counters.NavigationKeyHits) / float64(counters.KeyHits)
	}

	switch {
	case counters.KeyHits >= 40 && prodRatio >= 0.7 && navRatio < 0.15:
		tags = append(tags, "keyboard-heavy")
		return Classification{Category: "typing", Confidence: 0.8, Tags: tags}
	case counters.KeyHits >= 25 && prodRatio >= 0.4 && navRatio >= 0.15:
		tags = append(tags, "keyboard-heavy")
		return Classification{Category: "coding", Confidence: 0.7, Tags: tags}
	case counters.Scrolls >= 10 && counters.KeyHits < 15:
		tags = append(tags, "mouse-heavy")
		return Classification{Category: "reading", Confidence: 0.7, Tags: tags}
	case counters.Clicks >= 10 && counters.KeyHits < 15:
		tags = append(tags, "mouse-heavy")
		return Classification{Category: "navigation", Confidence: 0.6, Tags: tags}
	default:
		return Classification{Category: "balanced", Confidence: 0.5, Tags: tags}
	}
}

func appendCapped[T any](buf []T, v T, limit int) []T {
	buf = append(buf, v)
	if limit > 0 && len(buf) > limit {
		// Drop the oldest; shifts are fine at these buffer sizes.
		buf = buf[1:]
	}
	return buf
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// String implements fmt.Stringer for quick log lines.
func (c Counters) String() string {
	return fmt.Sprintf("keys=%d (prod=%d nav=%d uniq=%d) clicks=%d scrolls=%d dist=%.0fpx active=%ds",
		c.KeyHits, c.ProductiveKeyHits, c.NavigationKeyHits, c.UniqueKeys,
		c.Clicks, c.Scrolls, c.DistancePixels, c.ActiveSeconds)
}

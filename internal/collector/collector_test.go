package collector

import (
	"math/rand"
	"testing"
	"time"

	"monitord/internal/config"
	"monitord/internal/event"
)

func TestRecordCounters(t *testing.T) {
	c := newTestCollector()
	ts := base

	// Three presses of A, then a left-arrow navigation key.
	for _, code := range []uint16{65, 65, 65, 37} {
		c.Record(event.Event{Kind: event.KindKeyDown, Timestamp: ts, KeyCode: code})
		c.Record(event.Event{Kind: event.KindKeyUp, Timestamp: ts.Add(60 * time.Millisecond), KeyCode: code})
		ts = ts.Add(300 * time.Millisecond)
	}

	c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: ts, Button: event.ButtonLeft, X: 100, Y: 100})
	c.Record(event.Event{Kind: event.KindMouseUp, Timestamp: ts.Add(40 * time.Millisecond), Button: event.ButtonLeft})
	ts = ts.Add(time.Second)
	c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: ts, Button: event.ButtonRight})
	c.Record(event.Event{Kind: event.KindWheel, Timestamp: ts})
	c.Record(event.Event{Kind: event.KindMouseMove, Timestamp: ts, X: 100, Y: 100})
	c.Record(event.Event{Kind: event.KindMouseMove, Timestamp: ts.Add(16 * time.Millisecond), X: 103, Y: 104})

	got := c.Snapshot()
	if got.KeyHits != 4 {
		t.Errorf("KeyHits = %d, want 4", got.KeyHits)
	}
	if got.ProductiveKeyHits != 3 {
		t.Errorf("ProductiveKeyHits = %d, want 3", got.ProductiveKeyHits)
	}
	if got.NavigationKeyHits != 1 {
		t.Errorf("NavigationKeyHits = %d, want 1", got.NavigationKeyHits)
	}
	if got.UniqueKeys != 2 {
		t.Errorf("UniqueKeys = %d, want 2", got.UniqueKeys)
	}
	if got.ProductiveUniqueKeys != 1 {
		t.Errorf("ProductiveUniqueKeys = %d, want 1", got.ProductiveUniqueKeys)
	}
	if got.Clicks != 2 || got.LeftClicks != 1 || got.RightClicks != 1 {
		t.Errorf("clicks = %d/%d/%d, want 2/1/1", got.Clicks, got.LeftClicks, got.RightClicks)
	}
	if got.Scrolls != 1 {
		t.Errorf("Scrolls = %d, want 1", got.Scrolls)
	}
	// 3-4-5 triangle between the two move samples.
	if got.DistancePixels != 5 {
		t.Errorf("DistancePixels = %v, want 5", got.DistancePixels)
	}
}

func TestDoubleClickWindow(t *testing.T) {
	c := newTestCollector()

	c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: base, Button: event.ButtonLeft})
	c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: base.Add(200 * time.Millisecond), Button: event.ButtonLeft})
	c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: base.Add(2 * time.Second), Button: event.ButtonLeft})

	got := c.Snapshot()
	if got.DoubleClicks != 1 {
		t.Errorf("DoubleClicks = %d, want 1", got.DoubleClicks)
	}
	if got.Clicks != 3 {
		t.Errorf("Clicks = %d, want 3", got.Clicks)
	}
}

func TestSuspiciousIntervals(t *testing.T) {
	c := newTestCollector()
	ts := base

	// Sub-10ms gaps between keydowns are physically implausible.
	for i := 0; i < 6; i++ {
		c.Record(event.Event{Kind: event.KindKeyDown, Timestamp: ts, KeyCode: uint16(65 + i)})
		ts = ts.Add(4 * time.Millisecond)
	}

	if got := c.Snapshot().SuspiciousIntervals; got != 5 {
		t.Errorf("SuspiciousIntervals = %d, want 5", got)
	}
}

func TestTimeSamples(t *testing.T) {
	c := newTestCollector()
	for i := 0; i < 45; i++ {
		c.AddTimeSample(false)
	}
	for i := 0; i < 15; i++ {
		c.AddTimeSample(true)
	}

	got := c.Snapshot()
	if got.ActiveSeconds != 45 || got.IdleSeconds != 15 {
		t.Errorf("time samples = %d active / %d idle, want 45/15", got.ActiveSeconds, got.IdleSeconds)
	}

	bd := c.Analyze(time.Minute)
	if bd.TimeMetrics.ActivityPercentage != 75 {
		t.Errorf("ActivityPercentage = %v, want 75", bd.TimeMetrics.ActivityPercentage)
	}
}

func TestFreshCollectorRecordsKeyPair(t *testing.T) {
	// A brand-new collector must accept events before any reset call.
	c := New(config.DefaultConfig())

	c.Record(event.Event{Kind: event.KindKeyDown, Timestamp: base, KeyCode: 65})
	c.Record(event.Event{Kind: event.KindKeyUp, Timestamp: base.Add(60 * time.Millisecond), KeyCode: 65})

	if got := c.Snapshot(); got.KeyHits != 1 {
		t.Fatalf("KeyHits = %d, want 1", got.KeyHits)
	}
	if len(c.keyHolds) != 1 {
		t.Fatalf("key hold samples = %d, want 1", len(c.keyHolds))
	}
}

func TestResetPeriodKeepsRollingBuffers(t *testing.T) {
	c := newTestCollector()
	rng := rand.New(rand.NewSource(21))
	typeKeys(c, base, humanIntervals(30, rng), letterCodes(12))

	c.ResetPeriod()

	if got := c.Snapshot(); got.KeyHits != 0 || got.UniqueKeys != 0 {
		t.Fatalf("counters survived period reset: %+v", got)
	}

	// Rhythm analysis still sees the session-scoped keystroke buffer.
	bd := c.Analyze(time.Minute)
	if bd.Keyboard.TypingRhythm.AvgIntervalMs == 0 {
		t.Error("typing rhythm lost after period reset")
	}
}

func TestResetSessionClearsEverything(t *testing.T) {
	c := newTestCollector()
	rng := rand.New(rand.NewSource(23))
	typeKeys(c, base, humanIntervals(30, rng), letterCodes(12))
	c.Record(event.Event{Kind: event.KindMouseMove, Timestamp: base, X: 10, Y: 10})

	c.ResetSession()

	bd := c.Analyze(time.Minute)
	if bd.Keyboard.TypingRhythm.AvgIntervalMs != 0 {
		t.Error("keystroke buffer survived session reset")
	}
	if bd.Mouse.DistancePixels != 0 {
		t.Error("mouse state survived session reset")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		counters Counters
		want     string
	}{
		{"idle", Counters{}, "idle"},
		{"typing", Counters{KeyHits: 50, ProductiveKeyHits: 45, NavigationKeyHits: 2}, "typing"},
		{"coding", Counters{KeyHits: 30, ProductiveKeyHits: 15, NavigationKeyHits: 8}, "coding"},
		{"reading", Counters{Scrolls: 15, KeyHits: 3, ProductiveKeyHits: 3}, "reading"},
		{"navigation", Counters{Clicks: 12, KeyHits: 5, ProductiveKeyHits: 5}, "navigation"},
		{"balanced", Counters{KeyHits: 20, ProductiveKeyHits: 18, Clicks: 5}, "balanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.counters, BotDetection{}, TimeMetrics{})
			if got.Category != tt.want {
				t.Errorf("category = %q, want %q", got.Category, tt.want)
			}
		})
	}
}

func TestClassifyTags(t *testing.T) {
	got := classify(Counters{KeyHits: 50, ProductiveKeyHits: 45},
		BotDetection{KeyboardBotDetected: true},
		TimeMetrics{ActivityPercentage: 20})

	if !containsTag(got.Tags, "bot-suspect") {
		t.Errorf("missing bot-suspect tag: %v", got.Tags)
	}
	if !containsTag(got.Tags, "low-activity") {
		t.Errorf("missing low-activity tag: %v", got.Tags)
	}
}

func TestAppendCapped(t *testing.T) {
	var buf []int
	for i := 0; i < 10; i++ {
		buf = appendCapped(buf, i, 4)
	}
	if len(buf) != 4 {
		t.Fatalf("len = %d, want 4", len(buf))
	}
	if buf[0] != 6 || buf[3] != 9 {
		t.Errorf("kept %v, want oldest dropped", buf)
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

package collector

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"monitord/internal/event"
)

// moveAlong records a cursor path sampled every 16ms (60Hz).
func moveAlong(c *Collector, start time.Time, points [][2]float64) {
	t := start
	for _, p := range points {
		c.Record(event.Event{Kind: event.KindMouseMove, Timestamp: t, X: p[0], Y: p[1]})
		t = t.Add(16 * time.Millisecond)
	}
}

// linearPath interpolates n points on a straight line.
func linearPath(x0, y0, x1, y1 float64, n int) [][2]float64 {
	points := make([][2]float64, n)
	for i := range points {
		f := float64(i) / float64(n-1)
		points[i] = [2]float64{x0 + f*(x1-x0), y0 + f*(y1-y0)}
	}
	return points
}

// humanPath produces a curved, jittery path with varying speed.
func humanPath(x0, y0, x1, y1 float64, n int, rng *rand.Rand) [][2]float64 {
	points := make([][2]float64, n)
	for i := range points {
		f := float64(i) / float64(n-1)
		// Ease-in-out pacing with a perpendicular arc and jitter.
		eased := f * f * (3 - 2*f)
		arc := math.Sin(f*math.Pi) * 40
		points[i] = [2]float64{
			x0 + eased*(x1-x0) + arc + rng.Float64()*4 - 2,
			y0 + eased*(y1-y0) - arc + rng.Float64()*4 - 2,
		}
	}
	return points
}

func TestLinearPathDetected(t *testing.T) {
	c := newTestCollector()
	moveAlong(c, base, linearPath(0, 0, 800, 600, 50))

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if !containsDetail(analysis.Details, "linear mouse paths") {
		t.Errorf("linear path not detected: %v", analysis.Details)
	}
}

func TestHumanPathNotFlagged(t *testing.T) {
	c := newTestCollector()
	rng := rand.New(rand.NewSource(13))

	moveAlong(c, base, humanPath(100, 100, 900, 500, 60, rng))
	moveAlong(c, base.Add(2*time.Second), humanPath(900, 500, 200, 700, 60, rng))

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if analysis.Confidence > 0.7 {
		t.Errorf("human path flagged: confidence %.2f, details %v",
			analysis.Confidence, analysis.Details)
	}
}

func TestConstantSpeedDetected(t *testing.T) {
	c := newTestCollector()

	// Perfectly even spacing on a circle: constant speed, curved path,
	// so only the velocity detector should speak.
	points := make([][2]float64, 60)
	for i := range points {
		ang := float64(i) * 2 * math.Pi / 60
		points[i] = [2]float64{500 + 300*math.Cos(ang), 400 + 300*math.Sin(ang)}
	}
	moveAlong(c, base, points)

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if !containsDetail(analysis.Details, "constant cursor velocity") {
		t.Errorf("constant velocity not detected: %v", analysis.Details)
	}
}

func TestTeleportDetected(t *testing.T) {
	c := newTestCollector()
	rng := rand.New(rand.NewSource(17))

	points := humanPath(0, 0, 400, 300, 30, rng)
	moveAlong(c, base, points)
	// SetCursorPos-style jump: 900px in 1ms.
	c.Record(event.Event{Kind: event.KindMouseMove, Timestamp: base.Add(30*16*time.Millisecond + time.Millisecond), X: 1300, Y: 300})

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if !containsDetail(analysis.Details, "teleport") {
		t.Errorf("teleport not detected: %v", analysis.Details)
	}
}

func TestRoboticClickingDetected(t *testing.T) {
	c := newTestCollector()

	// 50ms metronome clicking.
	t0 := base
	for i := 0; i < 20; i++ {
		c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: t0, Button: event.ButtonLeft})
		c.Record(event.Event{Kind: event.KindMouseUp, Timestamp: t0.Add(10 * time.Millisecond), Button: event.ButtonLeft})
		t0 = t0.Add(50 * time.Millisecond)
	}

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if !containsDetail(analysis.Details, "robotic clicking") {
		t.Errorf("robotic clicking not detected: %v", analysis.Details)
	}
}

func TestMissingCorrectionsDetected(t *testing.T) {
	c := newTestCollector()

	// Six clicks, each approached on a dead-straight path.
	t0 := base
	for i := 0; i < 6; i++ {
		x0 := float64(i * 100)
		path := linearPath(x0, 0, x0+200, 150, 12)
		moveAlong(c, t0, path)
		clickAt := t0.Add(12 * 16 * time.Millisecond)
		c.Record(event.Event{Kind: event.KindMouseDown, Timestamp: clickAt, Button: event.ButtonLeft})
		c.Record(event.Event{Kind: event.KindMouseUp, Timestamp: clickAt.Add(30 * time.Millisecond), Button: event.ButtonLeft})
		t0 = clickAt.Add(time.Second)
	}

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if !containsDetail(analysis.Details, "no target corrections") {
		t.Errorf("missing-corrections rule did not fire: %v", analysis.Details)
	}
}

func TestFewPositionsNoMouseVerdict(t *testing.T) {
	c := newTestCollector()
	moveAlong(c, base, linearPath(0, 0, 100, 100, 5))

	c.mu.Lock()
	analysis := c.analyzeMouseLocked()
	c.mu.Unlock()

	if analysis.Confidence != 0 {
		t.Errorf("confidence %.2f on 5 positions, want 0", analysis.Confidence)
	}
}

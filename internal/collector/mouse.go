package collector

import (
	"fmt"
	"math"
	"time"
)

// Mouse detector contributions.
const (
	confLinearPaths     = 0.40
	confConstantSpeed   = 0.35
	confLowPathEntropy  = 0.30
	confNoCorrections   = 0.35
	confTeleport        = 0.40
	confRoboticClicking = 0.45
)

// minPositionsForAnalysis gates path-shape detectors.
const minPositionsForAnalysis = 20

// analyzeMouseLocked runs every mouse bot detector over the rolling
// position and click buffers. Callers hold c.mu.
func (c *Collector) analyzeMouseLocked() botAnalysis {
	var a botAnalysis

	if len(c.positions) >= minPositionsForAnalysis {
		c.detectLinearPaths(&a)
		c.detectConstantSpeed(&a)
		c.detectLowPathEntropy(&a)
		c.detectMissingCorrections(&a)
		c.detectTeleports(&a)
	}
	c.detectRoboticClicking(&a)

	a.finalize()
	return a
}

// segmentAngles returns movement direction (radians) per segment.
func (c *Collector) segmentAngles() []float64 {
	var angles []float64
	for i := 1; i < len(c.positions); i++ {
		a, b := c.positions[i-1], c.positions[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		if dx == 0 && dy == 0 {
			continue
		}
		angles = append(angles, math.Atan2(dy, dx))
	}
	return angles
}

// detectLinearPaths flags ruler-straight travel and axis-locked angles.
// Human cursor paths curve; generated paths interpolate linearly.
func (c *Collector) detectLinearPaths(a *botAnalysis) {
	angles := c.segmentAngles()
	if len(angles) < 10 {
		return
	}

	straight := 0
	axisAligned := 0
	for i := 1; i < len(angles); i++ {
		if math.Abs(angleDiff(angles[i], angles[i-1])) < 0.02 {
			straight++
		}
	}
	for _, ang := range angles {
		deg := math.Abs(ang) * 180 / math.Pi
		mod := math.Mod(deg, 45)
		if mod < 1 || mod > 44 {
			axisAligned++
		}
	}

	straightRatio := float64(straight) / float64(len(angles)-1)
	axisRatio := float64(axisAligned) / float64(len(angles))

	if straightRatio > 0.80 {
		a.add(confLinearPaths, fmt.Sprintf("linear mouse paths: %.0f%% straight segments", straightRatio*100))
	} else if axisRatio > 0.60 {
		a.add(confLinearPaths, fmt.Sprintf("axis-locked movement: %.0f%% at 45-degree multiples", axisRatio*100))
	}
}

// detectConstantSpeed flags a flat velocity profile. Human movement
// accelerates and decelerates; interpolated movement does not.
func (c *Collector) detectConstantSpeed(a *botAnalysis) {
	speeds := c.speedsLocked()
	if len(speeds) < 10 {
		return
	}

	if cv := coefficientOfVariation(speeds); cv < 0.15 {
		a.add(confConstantSpeed, fmt.Sprintf("constant cursor velocity: cv=%.2f", cv))
		return
	}

	// Flat acceleration: consecutive speed deltas near zero.
	nearZero := 0
	for i := 1; i < len(speeds); i++ {
		if math.Abs(speeds[i]-speeds[i-1]) < 0.02 {
			nearZero++
		}
	}
	if float64(nearZero)/float64(len(speeds)-1) > 0.80 {
		a.add(confConstantSpeed, "flat acceleration profile")
	}
}

// detectLowPathEntropy flags movement with too little directional variety,
// or periodic micro-jitter typical of sine-wave humanizers.
func (c *Collector) detectLowPathEntropy(a *botAnalysis) {
	angles := c.segmentAngles()
	if len(angles) < 16 {
		return
	}

	// Direction histogram over 16 sectors.
	histogram := make([]int, 16)
	for _, ang := range angles {
		sector := int((ang + math.Pi) / (2 * math.Pi) * 16)
		if sector >= 16 {
			sector = 15
		}
		histogram[sector]++
	}
	entropy := shannonEntropy(histogram)

	if entropy < 1.0 {
		a.add(confLowPathEntropy, fmt.Sprintf("low path entropy: %.2f bits", entropy))
		return
	}

	// Periodic jitter: perpendicular deviation alternating sign with
	// near-constant amplitude.
	if c.hasPeriodicJitter(angles) {
		a.add(confLowPathEntropy, "periodic micro-jitter in cursor path")
	}
}

// hasPeriodicJitter detects a sine-wave signature in direction changes.
func (c *Collector) hasPeriodicJitter(angles []float64) bool {
	if len(angles) < 20 {
		return false
	}

	var deltas []float64
	for i := 1; i < len(angles); i++ {
		deltas = append(deltas, angleDiff(angles[i], angles[i-1]))
	}

	// Count sign alternations with consistent magnitude.
	alternations := 0
	magnitudes := make([]float64, 0, len(deltas))
	for i := 1; i < len(deltas); i++ {
		if deltas[i]*deltas[i-1] < 0 {
			alternations++
			magnitudes = append(magnitudes, math.Abs(deltas[i]))
		}
	}
	if len(magnitudes) < 10 {
		return false
	}

	alternationRatio := float64(alternations) / float64(len(deltas)-1)
	return alternationRatio > 0.7 && coefficientOfVariation(magnitudes) < 0.2
}

// detectMissingCorrections flags click approaches without the micro
// direction changes humans make when homing onto a target.
func (c *Collector) detectMissingCorrections(a *botAnalysis) {
	if len(c.clickTimes) < 5 {
		return
	}

	const approachSamples = 5
	approaches := 0
	uncorrected := 0

	for _, click := range c.clickTimes {
		// Positions in the 500ms before the click.
		var approach []position
		for _, p := range c.positions {
			if p.T.Before(click) && click.Sub(p.T) < 500*time.Millisecond {
				approach = append(approach, p)
			}
		}
		if len(approach) < approachSamples {
			continue
		}
		approach = approach[len(approach)-approachSamples:]

		approaches++
		if directionChanges(approach) == 0 {
			uncorrected++
		}
	}

	if approaches >= 5 && float64(uncorrected)/float64(approaches) > 0.70 {
		a.add(confNoCorrections, fmt.Sprintf("no target corrections on %d/%d click approaches", uncorrected, approaches))
	}
}

// directionChanges counts sign flips in movement direction.
func directionChanges(path []position) int {
	changes := 0
	var prevAngle float64
	havePrev := false
	for i := 1; i < len(path); i++ {
		dx, dy := path[i].X-path[i-1].X, path[i].Y-path[i-1].Y
		if dx == 0 && dy == 0 {
			continue
		}
		ang := math.Atan2(dy, dx)
		if havePrev && math.Abs(angleDiff(ang, prevAngle)) > 0.1 {
			changes++
		}
		prevAngle = ang
		havePrev = true
	}
	return changes
}

// detectTeleports flags cursor jumps no pointing device produces.
func (c *Collector) detectTeleports(a *botAnalysis) {
	teleports := 0
	for i := 1; i < len(c.positions); i++ {
		p, q := c.positions[i-1], c.positions[i]
		dt := q.T.Sub(p.T)
		if dt <= 0 {
			continue
		}
		dist := math.Hypot(q.X-p.X, q.Y-p.Y)
		if (dist > 200 && dt < 5*time.Millisecond) || (dist > 500 && dt < 2*time.Millisecond) {
			teleports++
		}
	}

	if teleports > 0 {
		a.add(confTeleport, fmt.Sprintf("%d cursor teleports", teleports))
	}
}

// detectRoboticClicking flags unnaturally consistent fast clicking.
func (c *Collector) detectRoboticClicking(a *botAnalysis) {
	if len(c.clickTimes) < 10 {
		return
	}

	var intervals []float64
	for i := 1; i < len(c.clickTimes); i++ {
		gap := c.clickTimes[i].Sub(c.clickTimes[i-1])
		if gap <= 0 || gap > 5*time.Second {
			continue
		}
		intervals = append(intervals, float64(gap.Nanoseconds())/1e6)
	}
	if len(intervals) < 10 {
		return
	}

	if stdDev(intervals) < 2 && mean(intervals) < 100 {
		a.add(confRoboticClicking, fmt.Sprintf("robotic clicking: mean %.0fms, std under 2ms", mean(intervals)))
	}
}

// angleDiff returns the signed smallest difference between two angles.
func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

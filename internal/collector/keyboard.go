package collector

import (
	"fmt"
	"math"
)

// botAnalysis is the outcome of one modality's pattern analysis.
type botAnalysis struct {
	Confidence float64
	Details    []string
}

func (a *botAnalysis) add(confidence float64, detail string) {
	a.Confidence += confidence
	a.Details = append(a.Details, detail)
}

func (a *botAnalysis) finalize() {
	if a.Confidence > 1.0 {
		a.Confidence = 1.0
	}
}

// Detector contributions. Independent detectors each add a capped
// increment; the aggregate is compared against the flag threshold.
const (
	confSuperhuman       = 0.40
	confLowStdDev        = 0.35
	confRepeatedSequence = 0.30
	confPyAutoGUI        = 0.45
	confCharByChar       = 0.25
	confRepeatedKeyCodes = 0.40
	confCommonDelays     = 0.40
	confWallClockAlign   = 0.35
	confLowVariation     = 0.30
	confConstantHold     = 0.25
)

// minIntervalsForAnalysis gates detectors that need stable estimates.
const minIntervalsForAnalysis = 10

// analyzeKeyboardLocked runs every keyboard bot detector over the rolling
// keystroke buffers. Callers hold c.mu.
func (c *Collector) analyzeKeyboardLocked(intervals []float64) botAnalysis {
	var a botAnalysis

	if len(intervals) >= minIntervalsForAnalysis {
		c.detectSuperhumanIntervals(intervals, &a)
		c.detectLowStdDev(intervals, &a)
		c.detectRepeatedIntervalSequences(intervals, &a)
		c.detectPyAutoGUI(intervals, &a)
		c.detectCharByChar(intervals, &a)
		c.detectCommonDelays(intervals, &a)
		c.detectWallClockAlignment(&a)
		c.detectLowVariation(intervals, &a)
	}
	c.detectRepeatedKeyCodes(&a)
	c.detectConstantHold(&a)

	a.finalize()
	return a
}

// detectSuperhumanIntervals flags a high share of physically impossible
// inter-keystroke gaps.
func (c *Collector) detectSuperhumanIntervals(intervals []float64, a *botAnalysis) {
	fast := 0
	for _, iv := range intervals {
		if iv < 10 {
			fast++
		}
	}
	ratio := float64(fast) / float64(len(intervals))
	if ratio > 0.30 {
		a.add(confSuperhuman, fmt.Sprintf("superhuman typing: %.0f%% of intervals under 10ms", ratio*100))
	}
}

// detectLowStdDev flags metronome-like interval spread.
func (c *Collector) detectLowStdDev(intervals []float64, a *botAnalysis) {
	if sd := stdDev(intervals); sd < 5 {
		a.add(confLowStdDev, fmt.Sprintf("interval std-dev %.1fms below human floor", sd))
	}
}

// detectRepeatedIntervalSequences finds the same 4-interval rhythm
// recurring across the buffer.
func (c *Collector) detectRepeatedIntervalSequences(intervals []float64, a *botAnalysis) {
	if len(intervals) < 8 {
		return
	}

	// Quantize to 10ms so jittered replays still collide.
	quantized := make([]int, len(intervals))
	for i, iv := range intervals {
		quantized[i] = int(iv) / 10
	}

	seen := make(map[[4]int]int)
	maxRepeats := 0
	for i := 0; i+4 <= len(quantized); i++ {
		var seq [4]int
		copy(seq[:], quantized[i:i+4])
		seen[seq]++
		if seen[seq] > maxRepeats {
			maxRepeats = seen[seq]
		}
	}

	if maxRepeats >= 3 {
		a.add(confRepeatedSequence, fmt.Sprintf("4-interval rhythm repeated %d times", maxRepeats))
	}
}

// detectPyAutoGUI matches the interval fingerprint of the most common
// input-automation library: uniform delays in [150,500]ms with almost
// nothing below 100ms.
func (c *Collector) detectPyAutoGUI(intervals []float64, a *botAnalysis) {
	if len(intervals) < 20 {
		return
	}

	inRange := fractionWithin(intervals, 150, 500)
	belowBurst := fractionWithin(intervals, 0, 100)

	if inRange > 0.70 && belowBurst < 0.10 {
		a.add(confPyAutoGUI, fmt.Sprintf("pyautogui signature: %.0f%% in [150,500]ms, %.0f%% under 100ms",
			inRange*100, belowBurst*100))
	}
}

// detectCharByChar flags character-by-character injection: human typing
// shows quick digraph bursts that scripted streams lack.
func (c *Collector) detectCharByChar(intervals []float64, a *botAnalysis) {
	if len(intervals) < 30 {
		return
	}
	// Only meaningful for active typing; slow deliberate input has no
	// bursts either.
	if mean(intervals) > 800 {
		return
	}

	bursts := 0
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1] < 100 && intervals[i] < 100 {
			bursts++
		}
	}
	ratio := float64(bursts) / float64(len(intervals)-1)
	if ratio < 0.05 {
		a.add(confCharByChar, fmt.Sprintf("no burst typing: %.1f%% burst pairs", ratio*100))
	}
}

// detectRepeatedKeyCodes finds an identical 20-key-code subsequence
// occurring three or more times.
func (c *Collector) detectRepeatedKeyCodes(a *botAnalysis) {
	const seqLen = 20
	if len(c.keyCodes) < seqLen*2 {
		return
	}

	seen := make(map[string]int)
	maxRepeats := 0
	var buf [seqLen * 2]byte
	for i := 0; i+seqLen <= len(c.keyCodes); i++ {
		for j := 0; j < seqLen; j++ {
			code := c.keyCodes[i+j]
			buf[2*j] = byte(code >> 8)
			buf[2*j+1] = byte(code)
		}
		key := string(buf[:])
		seen[key]++
		if seen[key] > maxRepeats {
			maxRepeats = seen[key]
		}
	}

	if maxRepeats >= 3 {
		a.add(confRepeatedKeyCodes, fmt.Sprintf("identical 20-key sequence repeated %d times", maxRepeats))
	}
}

// detectCommonDelays flags clustering at the delay values automation
// scripts reach for.
func (c *Collector) detectCommonDelays(intervals []float64, a *botAnalysis) {
	commonDelays := []float64{100, 250, 500, 1000, 2000, 5000}

	matched := 0
	for _, iv := range intervals {
		for _, delay := range commonDelays {
			if math.Abs(iv-delay) <= delay*0.01 {
				matched++
				break
			}
		}
	}

	ratio := float64(matched) / float64(len(intervals))
	if ratio > 0.60 {
		a.add(confCommonDelays, fmt.Sprintf("%.0f%% of intervals at scripted delay values", ratio*100))
	}
}

// detectWallClockAlignment flags keystrokes landing on 5-second wall-clock
// boundaries, the mark of cron-style schedulers.
func (c *Collector) detectWallClockAlignment(a *botAnalysis) {
	if len(c.keyTimes) < minIntervalsForAnalysis {
		return
	}

	const toleranceMs = 50
	aligned := 0
	for _, t := range c.keyTimes {
		ms := t.UnixMilli() % 5000
		if ms <= toleranceMs || ms >= 5000-toleranceMs {
			aligned++
		}
	}

	ratio := float64(aligned) / float64(len(c.keyTimes))
	if ratio > 0.40 {
		a.add(confWallClockAlign, fmt.Sprintf("%.0f%% of keystrokes on 5s wall-clock boundaries", ratio*100))
	}
}

// detectLowVariation flags statistically flat timing: low coefficient of
// variation with near-symmetric distribution, or a tight band around the
// mean.
func (c *Collector) detectLowVariation(intervals []float64, a *botAnalysis) {
	cv := coefficientOfVariation(intervals)
	skew := skewness(intervals)

	if cv < 0.2 && math.Abs(skew) < 0.3 {
		a.add(confLowVariation, fmt.Sprintf("flat timing: cv=%.2f skew=%.2f", cv, skew))
		return
	}

	m := mean(intervals)
	if m > 0 {
		within := fractionWithin(intervals, m*0.9, m*1.1)
		if within > 0.70 {
			a.add(confLowVariation, fmt.Sprintf("%.0f%% of intervals within 10%% of mean", within*100))
		}
	}
}

// detectConstantHold flags near-constant key-hold durations.
func (c *Collector) detectConstantHold(a *botAnalysis) {
	if len(c.keyHolds) < minIntervalsForAnalysis {
		return
	}

	if sd := stdDev(c.keyHolds); sd < 10 {
		a.add(confConstantHold, fmt.Sprintf("key-hold std-dev %.1fms below human floor", sd))
		return
	}

	// Clustering at one fixed duration (5ms buckets).
	buckets := make(map[int]int)
	maxBucket := 0
	for _, h := range c.keyHolds {
		b := int(h) / 5
		buckets[b]++
		if buckets[b] > maxBucket {
			maxBucket = buckets[b]
		}
	}
	if float64(maxBucket)/float64(len(c.keyHolds)) > 0.60 {
		a.add(confConstantHold, "key-hold durations cluster at a fixed value")
	}
}

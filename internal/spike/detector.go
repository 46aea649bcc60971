// Package spike detects cross-period activity anomalies. Where the
// collector judges a single minute in isolation, this detector compares
// each new period against a rolling history of the session so far and
// flags statistically implausible jumps in input volume.
package spike

import (
	"fmt"
	"math"

	"monitord/internal/collector"
	"monitord/internal/config"
)

// Pattern is the behavioral classification of a period, used to decide
// whether an anomaly has an innocent explanation.
type Pattern string

const (
	PatternTyping     Pattern = "typing"
	PatternCoding     Pattern = "coding"
	PatternNavigation Pattern = "navigation"
	PatternReading    Pattern = "reading"
	PatternUnknown    Pattern = "unknown"
)

// Result is the per-period verdict.
type Result struct {
	IsBot      bool     `json:"isBot"`
	HasSpike   bool     `json:"hasSpike"`
	SpikeScore float64  `json:"spikeScore"` // 0-100
	Confidence float64  `json:"confidence"` // 0-100
	Reason     string   `json:"spikeReason,omitempty"`
	Details    []string `json:"details,omitempty"`
	Pattern    Pattern  `json:"pattern"`
}

// sample is the per-period aggregate kept in the rolling history.
type sample struct {
	productive int
	keyHits    int
	clicks     int
	scrolls    int
	distance   float64
}

// Detector holds the rolling per-session history. It is owned by exactly
// one session; construct a fresh one per session and discard it at stop.
// Not safe for concurrent use; the session controller serializes access.
type Detector struct {
	cfg     config.SpikeConfig
	history []sample
}

func New(cfg config.SpikeConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Reset drops all history. Equivalent to constructing a new detector.
func (d *Detector) Reset() {
	d.history = nil
}

// HistoryLen reports how many periods are in the rolling history.
func (d *Detector) HistoryLen() int {
	return len(d.history)
}

// signal weights: how much a single tripped z-score rule contributes.
const (
	keySpikeScore   = 35.0
	keySpikeConf    = 30.0
	clickSpikeScore = 30.0
	clickSpikeConf  = 25.0
	distSpikeScore  = 20.0
	distSpikeConf   = 15.0
	scrollSpikeScore = 15.0
	scrollSpikeConf = 10.0

	// Categorical rules carry more weight than any single z-score.
	lowDiversityScore = 50.0
	lowDiversityConf  = 45.0
	burstScore        = 40.0
	burstConf         = 35.0
	sustainedScore    = 45.0
	sustainedConf     = 40.0
	clickFloodScore   = 45.0
	clickFloodConf    = 40.0

	// Multipliers applied when the classified pattern does or does not
	// explain the anomalous signal.
	dampen  = 0.4
	amplify = 1.3
)

// Analyze scores the period against the rolling history, then folds the
// period into the history. Returns a zero Result until enough history
// has accumulated.
func (d *Detector) Analyze(counters collector.Counters) Result {
	cur := sample{
		productive: counters.ProductiveKeyHits,
		keyHits:    counters.KeyHits,
		clicks:     counters.Clicks,
		scrolls:    counters.Scrolls,
		distance:   counters.DistancePixels,
	}

	if len(d.history) < d.cfg.MinPeriods {
		d.push(cur)
		return Result{Pattern: classifyPattern(counters)}
	}

	pattern := classifyPattern(counters)
	res := Result{Pattern: pattern}

	d.applyZScoreRules(&res, cur, pattern)
	d.applyCategoricalRules(&res, counters, pattern)

	if res.SpikeScore > 100 {
		res.SpikeScore = 100
	}
	if res.Confidence > 100 {
		res.Confidence = 100
	}

	res.IsBot = res.SpikeScore >= d.cfg.BotScore && res.Confidence >= d.cfg.BotConfidence
	res.HasSpike = res.SpikeScore >= d.cfg.SpikeScore
	if len(res.Details) > 0 {
		res.Reason = res.Details[0]
	}

	d.push(cur)
	return res
}

func (d *Detector) push(s sample) {
	d.history = append(d.history, s)
	if len(d.history) > d.cfg.HistorySize {
		d.history = d.history[1:]
	}
}

// applyZScoreRules compares each volume signal against the rolling
// mean/std-dev. A keyboard spike during a period that classifies as
// typing or coding is probably just a productive burst, so its
// contribution is dampened; an unexplained spike is amplified.
func (d *Detector) applyZScoreRules(res *Result, cur sample, pattern Pattern) {
	keyZ := d.zScore(cur.productive, func(s sample) float64 { return float64(s.productive) })
	clickZ := d.zScore(cur.clicks, func(s sample) float64 { return float64(s.clicks) })
	distZ := zScoreOf(cur.distance, d.values(func(s sample) float64 { return s.distance }))
	scrollZ := d.zScore(cur.scrolls, func(s sample) float64 { return float64(s.scrolls) })

	if keyZ > d.cfg.KeyZScore {
		mult := contextMultiplier(pattern, PatternTyping, PatternCoding)
		res.add(keySpikeScore*mult, keySpikeConf*mult,
			fmt.Sprintf("productive key spike (z=%.1f, pattern=%s)", keyZ, pattern))
	}
	if clickZ > d.cfg.ClickZScore {
		mult := contextMultiplier(pattern, PatternNavigation, PatternReading)
		res.add(clickSpikeScore*mult, clickSpikeConf*mult,
			fmt.Sprintf("click spike (z=%.1f, pattern=%s)", clickZ, pattern))
	}
	if distZ > d.cfg.DistanceZScore {
		mult := contextMultiplier(pattern, PatternNavigation, PatternReading)
		res.add(distSpikeScore*mult, distSpikeConf*mult,
			fmt.Sprintf("mouse distance spike (z=%.1f, pattern=%s)", distZ, pattern))
	}
	if scrollZ > d.cfg.ScrollZScore {
		mult := contextMultiplier(pattern, PatternReading)
		res.add(scrollSpikeScore*mult, scrollSpikeConf*mult,
			fmt.Sprintf("scroll spike (z=%.1f, pattern=%s)", scrollZ, pattern))
	}
}

// applyCategoricalRules covers the abuse shapes z-scores miss: floods
// that were anomalous from the first period, and bursts out of silence.
func (d *Detector) applyCategoricalRules(res *Result, counters collector.Counters, pattern Pattern) {
	if counters.ProductiveKeyHits >= d.cfg.LowDiversityHits &&
		counters.UniqueKeys < d.cfg.LowDiversityKeys &&
		navShare(counters) < 0.1 {
		res.add(lowDiversityScore, lowDiversityConf,
			fmt.Sprintf("%d productive hits over %d unique keys", counters.ProductiveKeyHits, counters.UniqueKeys))
	}

	if d.quietStreak(3) && counters.ProductiveKeyHits >= d.cfg.LowDiversityHits &&
		pattern != PatternTyping && pattern != PatternCoding {
		res.add(burstScore, burstConf, "activity burst after idle periods")
	}

	if counters.ProductiveKeyHits > d.cfg.SustainedKeyRate {
		res.add(sustainedScore, sustainedConf,
			fmt.Sprintf("sustained key rate %d/min above ceiling %d", counters.ProductiveKeyHits, d.cfg.SustainedKeyRate))
	}

	if counters.Clicks > d.cfg.ClickFlood {
		res.add(clickFloodScore, clickFloodConf,
			fmt.Sprintf("click flood: %d clicks in one period", counters.Clicks))
	}
}

func (r *Result) add(score, conf float64, detail string) {
	r.SpikeScore += score
	r.Confidence += conf
	r.Details = append(r.Details, detail)
}

// contextMultiplier dampens a signal when the classified pattern is one
// of the explanatory patterns, and amplifies it when nothing explains it.
func contextMultiplier(pattern Pattern, explanatory ...Pattern) float64 {
	for _, p := range explanatory {
		if pattern == p {
			return dampen
		}
	}
	if pattern == PatternUnknown {
		return amplify
	}
	return 1.0
}

// quietStreak reports whether the most recent n periods were near-silent.
func (d *Detector) quietStreak(n int) bool {
	if len(d.history) < n {
		return false
	}
	for _, s := range d.history[len(d.history)-n:] {
		if s.keyHits > 2 || s.clicks > 2 || s.distance > 100 {
			return false
		}
	}
	return true
}

func (d *Detector) zScore(cur int, extract func(sample) float64) float64 {
	return zScoreOf(float64(cur), d.values(extract))
}

func (d *Detector) values(extract func(sample) float64) []float64 {
	vals := make([]float64, len(d.history))
	for i, s := range d.history {
		vals[i] = extract(s)
	}
	return vals
}

func zScoreOf(cur float64, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(vals)))

	// A flat history makes any deviation infinitely anomalous; floor the
	// spread so a jump from uniform silence still yields a finite z.
	if std < 1 {
		std = 1
	}
	return (cur - mean) / std
}

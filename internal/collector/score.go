package collector

// scoreFormula documents the calculation for the persisted breakdown.
const scoreFormula = "clamp(((kh*wk + kd*wd + cl*wc + sc*ws + mv*wm) - penalties + bonus) * 10, 0, 100)"

// ratePoint is one knee of a piecewise-linear mapping from a per-minute
// rate to a 0-10 sub-score.
type ratePoint struct {
	rate  float64
	score float64
}

// Diminishing-returns curves per sub-score. Beyond the last knee the
// sub-score saturates at 10.
var (
	keyHitsCurve = []ratePoint{
		{0, 0}, {30, 4}, {80, 7}, {150, 9}, {300, 10},
	}
	keyDiversityCurve = []ratePoint{
		{0, 0}, {5, 3}, {15, 7}, {30, 9}, {50, 10},
	}
	clicksCurve = []ratePoint{
		{0, 0}, {10, 4}, {30, 8}, {60, 10},
	}
	scrollsCurve = []ratePoint{
		{0, 0}, {5, 4}, {20, 8}, {50, 10},
	}
	movementCurve = []ratePoint{
		{0, 0}, {500, 4}, {2000, 8}, {5000, 10},
	}
)

// mapRate converts a per-minute rate to a 0-10 sub-score along a curve.
func mapRate(rate float64, curve []ratePoint) float64 {
	if rate <= 0 {
		return 0
	}
	for i := 1; i < len(curve); i++ {
		if rate <= curve[i].rate {
			lo, hi := curve[i-1], curve[i]
			frac := (rate - lo.rate) / (hi.rate - lo.rate)
			return lo.score + frac*(hi.score-lo.score)
		}
	}
	return curve[len(curve)-1].score
}

// calculateScoreLocked computes the weighted score on the 0-10 scale, then
// scales to 0-100. Callers hold c.mu.
func (c *Collector) calculateScoreLocked(counters Counters, minutes float64, bot BotDetection, tm TimeMetrics) ScoreCalculation {
	components := ScoreComponents{
		KeyHits:      mapRate(float64(counters.KeyHits)/minutes, keyHitsCurve),
		KeyDiversity: mapRate(float64(counters.UniqueKeys)/minutes, keyDiversityCurve),
		Clicks:       mapRate(float64(counters.Clicks)/minutes, clicksCurve),
		Scrolls:      mapRate(float64(counters.Scrolls)/minutes, scrollsCurve),
		Movement:     mapRate(counters.DistancePixels/minutes, movementCurve),
	}

	weighted := components.KeyHits*c.scoreCfg.KeyHitsWeight +
		components.KeyDiversity*c.scoreCfg.KeyDiversityWeight +
		components.Clicks*c.scoreCfg.ClicksWeight +
		components.Scrolls*c.scoreCfg.ScrollsWeight +
		components.Movement*c.scoreCfg.MovementWeight

	penalties := c.calculatePenalties(counters, bot, tm)
	bonus := c.calculateBonus(counters)

	raw := (weighted - penalties.Total + bonus.Amount) * 10

	final := int(raw + 0.5)
	if raw < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return ScoreCalculation{
		Components: components,
		Penalties:  penalties,
		Bonus:      bonus,
		Formula:    scoreFormula,
		RawScore:   raw,
		FinalScore: final,
	}
}

func (c *Collector) calculatePenalties(counters Counters, bot BotDetection, tm TimeMetrics) ScorePenalties {
	var p ScorePenalties

	if bot.KeyboardBotDetected {
		p.KeyboardBot = c.scoreCfg.KeyboardBotPenalty
	}
	if bot.MouseBotDetected {
		p.MouseBot = c.scoreCfg.MouseBotPenalty
	}

	// Only penalize low activity when idle sampling produced data.
	if sampled := tm.ActiveSeconds + tm.IdleSeconds; sampled > 0 {
		switch {
		case tm.ActivityPercentage < 10:
			p.LowActivity = c.scoreCfg.VeryLowActivityPenalty
		case tm.ActivityPercentage < 30:
			p.LowActivity = c.scoreCfg.LowActivityPenalty
		}
	}

	if counters.SuspiciousIntervals > 10 {
		p.SuspiciousInterval = c.scoreCfg.SuspiciousIntervalPenalty
	}

	p.Total = p.KeyboardBot + p.MouseBot + p.LowActivity + p.SuspiciousInterval
	return p
}

// calculateBonus grants exactly one of the keyboard, mouse, or balanced
// bonuses, checked in that order.
func (c *Collector) calculateBonus(counters Counters) ScoreBonus {
	cfg := c.scoreCfg

	if counters.KeyHits >= cfg.KeyboardBonusKeyHits && counters.UniqueKeys >= cfg.KeyboardBonusUniqueKey {
		return ScoreBonus{Kind: "keyboard", Amount: cfg.KeyboardBonus}
	}
	if counters.Clicks >= cfg.MouseBonusClicks || counters.DistancePixels >= cfg.MouseBonusDistance {
		return ScoreBonus{Kind: "mouse", Amount: cfg.MouseBonus}
	}
	if counters.KeyHits >= cfg.KeyboardBonusKeyHits/3 && counters.Clicks >= cfg.MouseBonusClicks/3 {
		return ScoreBonus{Kind: "balanced", Amount: cfg.BalancedBonus}
	}
	return ScoreBonus{}
}

package spike

import "monitord/internal/collector"

// classifyPattern decides which work-shape best explains the period.
// The thresholds are deliberately looser than the collector's behavioral
// classification: here a match only dampens the anomaly weighting, so a
// borderline call errs toward giving the user the benefit of the doubt,
// while a period nothing explains lands on PatternUnknown and gets its
// anomalies amplified instead.
func classifyPattern(counters collector.Counters) Pattern {
	prod := prodShare(counters)
	nav := navShare(counters)

	switch {
	case counters.KeyHits >= 30 && prod >= 0.6 && nav < 0.15 && counters.UniqueKeys >= 8:
		return PatternTyping
	case counters.KeyHits >= 15 && prod >= 0.35 && nav >= 0.15 && counters.UniqueKeys >= 6:
		return PatternCoding
	case counters.Scrolls >= 8 && counters.KeyHits < 15:
		return PatternReading
	case (counters.Clicks >= 8 || counters.DistancePixels >= 1500) && counters.KeyHits < 20:
		return PatternNavigation
	default:
		return PatternUnknown
	}
}

func prodShare(counters collector.Counters) float64 {
	if counters.KeyHits == 0 {
		return 0
	}
	return float64(counters.ProductiveKeyHits) / float64(counters.KeyHits)
}

func navShare(counters collector.Counters) float64 {
	if counters.KeyHits == 0 {
		return 0
	}
	return float64(counters.NavigationKeyHits) / float64(counters.KeyHits)
}

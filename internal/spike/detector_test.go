package spike

import (
	"strings"
	"testing"

	"monitord/internal/collector"
	"monitord/internal/config"
)

func newDetector() *Detector {
	return New(config.DefaultConfig().Spike)
}

// typingCounters builds a plausible minute of human typing.
func typingCounters(prod int) collector.Counters {
	return collector.Counters{
		KeyHits:           prod + prod/10,
		ProductiveKeyHits: prod,
		NavigationKeyHits: prod / 20,
		UniqueKeys:        18,
		Clicks:            4,
		Scrolls:           2,
		DistancePixels:    600,
	}
}

func TestNoVerdictBeforeMinimumHistory(t *testing.T) {
	d := newDetector()

	// Even wildly anomalous periods must score zero until the rolling
	// history has enough context to compare against.
	flood := collector.Counters{
		KeyHits:           900,
		ProductiveKeyHits: 900,
		UniqueKeys:        1,
		Clicks:            400,
	}
	for i := 0; i < 5; i++ {
		res := d.Analyze(flood)
		if res.SpikeScore != 0 || res.IsBot || res.HasSpike {
			t.Fatalf("period %d: got verdict %+v with only %d periods of history", i, res, i)
		}
	}
}

func TestSteadyTypingNotFlagged(t *testing.T) {
	d := newDetector()

	for i, prod := range []int{50, 62, 55, 68, 58, 64, 52, 60} {
		res := d.Analyze(typingCounters(prod))
		if res.HasSpike || res.IsBot {
			t.Errorf("period %d (prod=%d) flagged: %+v", i, prod, res)
		}
	}
}

func TestLowDiversityFlood(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(typingCounters(60))
	}

	res := d.Analyze(collector.Counters{
		KeyHits:           300,
		ProductiveKeyHits: 300,
		UniqueKeys:        2,
	})

	if !res.IsBot {
		t.Errorf("low-diversity flood not judged bot: %+v", res)
	}
	if !containsDetail(res.Details, "unique keys") {
		t.Errorf("missing low-diversity detail: %v", res.Details)
	}
	if res.Reason == "" {
		t.Error("reason not set on verdict")
	}
}

func TestTypingPatternDampensKeySpike(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(typingCounters(60))
	}

	// Same volume jump, but spread over many keys with a human
	// productive/navigation mix: the typing classification should
	// dampen the z-score contribution below the spike threshold.
	res := d.Analyze(collector.Counters{
		KeyHits:           320,
		ProductiveKeyHits: 300,
		NavigationKeyHits: 10,
		UniqueKeys:        20,
	})

	if res.Pattern != PatternTyping {
		t.Fatalf("pattern = %s, want typing", res.Pattern)
	}
	if res.HasSpike {
		t.Errorf("dampened productive burst still flagged: %+v", res)
	}
}

func TestClickFlood(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(collector.Counters{Clicks: 5, KeyHits: 20, DistancePixels: 400})
	}

	res := d.Analyze(collector.Counters{Clicks: 150, KeyHits: 25})

	if !res.IsBot {
		t.Errorf("click flood not judged bot: %+v", res)
	}
	if !containsDetail(res.Details, "click flood") {
		t.Errorf("missing click flood detail: %v", res.Details)
	}
}

func TestBurstAfterSilence(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(collector.Counters{})
	}

	res := d.Analyze(collector.Counters{
		KeyHits:           150,
		ProductiveKeyHits: 150,
		UniqueKeys:        5,
	})

	if !containsDetail(res.Details, "burst") {
		t.Errorf("missing burst detail: %v", res.Details)
	}
	if !res.IsBot {
		t.Errorf("burst out of silence not judged bot: %+v", res)
	}
}

func TestSustainedRateCeiling(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(typingCounters(60))
	}

	res := d.Analyze(typingCounters(450))

	if !containsDetail(res.Details, "sustained key rate") {
		t.Errorf("missing sustained rate detail: %v", res.Details)
	}
	if !res.HasSpike {
		t.Errorf("sustained ceiling breach not a spike: %+v", res)
	}
}

func TestScoresCapped(t *testing.T) {
	d := newDetector()
	for i := 0; i < 5; i++ {
		d.Analyze(collector.Counters{})
	}

	// Trip every rule at once.
	res := d.Analyze(collector.Counters{
		KeyHits:           900,
		ProductiveKeyHits: 900,
		UniqueKeys:        1,
		Clicks:            300,
		Scrolls:           200,
		DistancePixels:    90000,
	})

	if res.SpikeScore > 100 || res.Confidence > 100 {
		t.Errorf("scores not capped: score=%v conf=%v", res.SpikeScore, res.Confidence)
	}
	if !res.IsBot {
		t.Errorf("everything-at-once not judged bot: %+v", res)
	}
}

func TestHistoryCapAndReset(t *testing.T) {
	d := newDetector()
	for i := 0; i < 30; i++ {
		d.Analyze(typingCounters(60))
	}
	if got := d.HistoryLen(); got != 20 {
		t.Errorf("history length = %d, want 20", got)
	}

	d.Reset()
	if got := d.HistoryLen(); got != 0 {
		t.Errorf("history length after reset = %d, want 0", got)
	}

	// Back under the minimum: verdicts return to zero.
	res := d.Analyze(collector.Counters{Clicks: 500})
	if res.SpikeScore != 0 {
		t.Errorf("verdict after reset with no history: %+v", res)
	}
}

func TestClassifyPattern(t *testing.T) {
	tests := []struct {
		name     string
		counters collector.Counters
		want     Pattern
	}{
		{"typing", collector.Counters{KeyHits: 60, ProductiveKeyHits: 55, UniqueKeys: 15}, PatternTyping},
		{"coding", collector.Counters{KeyHits: 40, ProductiveKeyHits: 20, NavigationKeyHits: 10, UniqueKeys: 12}, PatternCoding},
		{"reading", collector.Counters{Scrolls: 12, KeyHits: 4}, PatternReading},
		{"navigation", collector.Counters{Clicks: 15, KeyHits: 6}, PatternNavigation},
		{"unknown", collector.Counters{KeyHits: 5}, PatternUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyPattern(tt.counters); got != tt.want {
				t.Errorf("classifyPattern = %s, want %s", got, tt.want)
			}
		})
	}
}

func containsDetail(details []string, substr string) bool {
	for _, d := range details {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

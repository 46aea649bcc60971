// Package collector aggregates raw input events into per-minute activity
// metrics, runs keyboard and mouse bot-pattern analyses over rolling
// buffers, and computes the weighted 0-100 activity score.
package collector

// Breakdown is the full per-period metrics payload. It is serialized as
// JSON only at the persistence boundary.
type Breakdown struct {
	Keyboard     KeyboardMetrics  `json:"keyboard"`
	Mouse        MouseMetrics     `json:"mouse"`
	BotDetection BotDetection     `json:"botDetection"`
	TimeMetrics  TimeMetrics      `json:"timeMetrics"`
	Score        ScoreCalculation `json:"scoreCalculation"`
	Class        Classification   `json:"classification"`
}

// KeyboardMetrics summarizes keyboard activity for one period.
type KeyboardMetrics struct {
	TotalKeystrokes      int          `json:"totalKeystrokes"`
	ProductiveKeystrokes int          `json:"productiveKeystrokes"`
	NavigationKeystrokes int          `json:"navigationKeystrokes"`
	UniqueKeys           int          `json:"uniqueKeys"`
	ProductiveUniqueKeys int          `json:"productiveUniqueKeys"`
	KeysPerMinute        float64      `json:"keysPerMinute"`
	TypingRhythm         TypingRhythm `json:"typingRhythm"`
}

// TypingRhythm describes inter-keystroke interval statistics.
type TypingRhythm struct {
	Consistent     bool    `json:"consistent"`
	AvgIntervalMs  float64 `json:"avgIntervalMs"`
	StdDeviationMs float64 `json:"stdDeviationMs"`
}

// MouseMetrics summarizes mouse activity for one period.
type MouseMetrics struct {
	TotalClicks       int             `json:"totalClicks"`
	LeftClicks        int             `json:"leftClicks"`
	RightClicks       int             `json:"rightClicks"`
	DoubleClicks      int             `json:"doubleClicks"`
	TotalScrolls      int             `json:"totalScrolls"`
	DistancePixels    float64         `json:"distancePixels"`
	DistancePerMinute float64         `json:"distancePerMinute"`
	MovementPattern   MovementPattern `json:"movementPattern"`
}

// MovementPattern describes cursor movement characteristics.
type MovementPattern struct {
	Smooth   bool    `json:"smooth"`
	AvgSpeed float64 `json:"avgSpeed"`
	MaxSpeed float64 `json:"maxSpeed"`
}

// BotDetection carries both per-period pattern verdicts.
type BotDetection struct {
	KeyboardBotDetected bool     `json:"keyboardBotDetected"`
	MouseBotDetected    bool     `json:"mouseBotDetected"`
	Confidence          float64  `json:"confidence"`
	Details             []string `json:"details"`
}

// TimeMetrics describes the active/idle split of the period.
type TimeMetrics struct {
	PeriodDurationSeconds int     `json:"periodDurationSeconds"`
	ActiveSeconds         int     `json:"activeSeconds"`
	IdleSeconds           int     `json:"idleSeconds"`
	ActivityPercentage    float64 `json:"activityPercentage"`
}

// ScoreCalculation records how the final score was derived.
type ScoreCalculation struct {
	Components ScoreComponents `json:"components"`
	Penalties  ScorePenalties  `json:"penalties"`
	Bonus      ScoreBonus      `json:"bonus"`
	Formula    string          `json:"formula"`
	RawScore   float64         `json:"rawScore"`
	FinalScore int             `json:"finalScore"`
}

// ScoreComponents are the five weighted sub-scores, each on a 0-10 scale.
type ScoreComponents struct {
	KeyHits      float64 `json:"keyHits"`
	KeyDiversity float64 `json:"keyDiversity"`
	Clicks       float64 `json:"clicks"`
	Scrolls      float64 `json:"scrolls"`
	Movement     float64 `json:"movement"`
}

// ScorePenalties are deductions applied on the 0-10 scale.
type ScorePenalties struct {
	KeyboardBot        float64 `json:"keyboardBot"`
	MouseBot           float64 `json:"mouseBot"`
	LowActivity        float64 `json:"lowActivity"`
	SuspiciousInterval float64 `json:"suspiciousInterval"`
	Total              float64 `json:"total"`
}

// ScoreBonus is the mutually-exclusive activity bonus.
type ScoreBonus struct {
	Kind   string  `json:"kind"` // "keyboard", "mouse", "balanced", or ""
	Amount float64 `json:"amount"`
}

// Classification tags the behavioral character of the period.
type Classification struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

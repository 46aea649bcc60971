// Package config handles configuration loading, validation, and management for monitord.
package config

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
//
// Every threshold the aggregation engine consults lives here rather than in
// code, so deployments can tune detection behavior without a rebuild.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// User is the local identity sessions are attributed to.
	User UserConfig `toml:"user" json:"user" yaml:"user"`

	// Keys classifies keycodes into productive and navigation sets.
	Keys KeysConfig `toml:"keys" json:"keys" yaml:"keys"`

	// Score controls activity score computation.
	Score ScoreConfig `toml:"score" json:"score" yaml:"score"`

	// Bot controls the per-period bot-pattern detectors.
	Bot BotConfig `toml:"bot" json:"bot" yaml:"bot"`

	// Spike controls cross-period spike detection.
	Spike SpikeConfig `toml:"spike" json:"spike" yaml:"spike"`

	// Session controls session lifecycle behavior.
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Buffers caps the collector's rolling buffers.
	Buffers BuffersConfig `toml:"buffers" json:"buffers" yaml:"buffers"`

	// Storage configures the SQLite persistence layer.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configures structured logging.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Telemetry configures the operational metrics endpoint.
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry" yaml:"telemetry"`
}

// UserConfig identifies the user whose activity is tracked.
type UserConfig struct {
	// ID is the stable user identifier reported to the backend.
	ID string `toml:"id" json:"id" yaml:"id"`

	// Name is a display name, informational only.
	Name string `toml:"name" json:"name" yaml:"name"`

	// Email is informational only.
	Email string `toml:"email" json:"email" yaml:"email"`
}

// KeysConfig holds keycode classification sets.
//
// Keycodes follow the common virtual-key numbering (letters 65-90, digits
// 48-57, arrows 37-40). A keycode in neither set counts toward totals but
// toward neither productive nor navigation splits.
type KeysConfig struct {
	// Productive lists content-generating keycodes.
	Productive []uint16 `toml:"productive" json:"productive" yaml:"productive"`

	// Navigation lists movement/editing keycodes.
	Navigation []uint16 `toml:"navigation" json:"navigation" yaml:"navigation"`
}

// ScoreConfig controls the weighted activity score.
type ScoreConfig struct {
	// Component weights. Must sum to 1.0.
	KeyHitsWeight      float64 `toml:"key_hits_weight" json:"key_hits_weight" yaml:"key_hits_weight"`
	KeyDiversityWeight float64 `toml:"key_diversity_weight" json:"key_diversity_weight" yaml:"key_diversity_weight"`
	ClicksWeight       float64 `toml:"clicks_weight" json:"clicks_weight" yaml:"clicks_weight"`
	ScrollsWeight      float64 `toml:"scrolls_weight" json:"scrolls_weight" yaml:"scrolls_weight"`
	MovementWeight     float64 `toml:"movement_weight" json:"movement_weight" yaml:"movement_weight"`

	// Penalties subtracted from the 0-10 weighted base before scaling.
	KeyboardBotPenalty        float64 `toml:"keyboard_bot_penalty" json:"keyboard_bot_penalty" yaml:"keyboard_bot_penalty"`
	MouseBotPenalty           float64 `toml:"mouse_bot_penalty" json:"mouse_bot_penalty" yaml:"mouse_bot_penalty"`
	LowActivityPenalty        float64 `toml:"low_activity_penalty" json:"low_activity_penalty" yaml:"low_activity_penalty"`
	VeryLowActivityPenalty    float64 `toml:"very_low_activity_penalty" json:"very_low_activity_penalty" yaml:"very_low_activity_penalty"`
	SuspiciousIntervalPenalty float64 `toml:"suspicious_interval_penalty" json:"suspicious_interval_penalty" yaml:"suspicious_interval_penalty"`

	// Activity bonus. Exactly one of the three bonuses applies per period.
	KeyboardBonusKeyHits   int     `toml:"keyboard_bonus_key_hits" json:"keyboard_bonus_key_hits" yaml:"keyboard_bonus_key_hits"`
	KeyboardBonusUniqueKey int     `toml:"keyboard_bonus_unique_keys" json:"keyboard_bonus_unique_keys" yaml:"keyboard_bonus_unique_keys"`
	MouseBonusClicks       int     `toml:"mouse_bonus_clicks" json:"mouse_bonus_clicks" yaml:"mouse_bonus_clicks"`
	MouseBonusDistance     float64 `toml:"mouse_bonus_distance" json:"mouse_bonus_distance" yaml:"mouse_bonus_distance"`
	KeyboardBonus          float64 `toml:"keyboard_bonus" json:"keyboard_bonus" yaml:"keyboard_bonus"`
	MouseBonus             float64 `toml:"mouse_bonus" json:"mouse_bonus" yaml:"mouse_bonus"`
	BalancedBonus          float64 `toml:"balanced_bonus" json:"balanced_bonus" yaml:"balanced_bonus"`

	// ServerMultiplier is applied once at the persistence boundary. The
	// hosted backend historically applied its own +15%; keeping the factor
	// here ensures the boost exists in exactly one configurable place.
	ServerMultiplier float64 `toml:"server_multiplier" json:"server_multiplier" yaml:"server_multiplier"`
}

// BotConfig controls per-period bot-pattern detection.
type BotConfig struct {
	// FlagThreshold is the aggregate confidence above which a keyboard or
	// mouse analysis reports a bot.
	FlagThreshold float64 `toml:"flag_threshold" json:"flag_threshold" yaml:"flag_threshold"`

	// HardConfidence invalidates a period and zeroes its score.
	HardConfidence float64 `toml:"hard_confidence" json:"hard_confidence" yaml:"hard_confidence"`

	// SoftConfidence discounts the score proportionally to the spike.
	SoftConfidence float64 `toml:"soft_confidence" json:"soft_confidence" yaml:"soft_confidence"`
}

// SpikeConfig controls cross-period statistical spike detection.
type SpikeConfig struct {
	// HistorySize is the number of periods kept in the rolling history.
	HistorySize int `toml:"history_size" json:"history_size" yaml:"history_size"`

	// MinPeriods is the minimum history before any non-zero result.
	MinPeriods int `toml:"min_periods" json:"min_periods" yaml:"min_periods"`

	// Z-score thresholds per signal.
	KeyZScore      float64 `toml:"key_z_score" json:"key_z_score" yaml:"key_z_score"`
	ClickZScore    float64 `toml:"click_z_score" json:"click_z_score" yaml:"click_z_score"`
	DistanceZScore float64 `toml:"distance_z_score" json:"distance_z_score" yaml:"distance_z_score"`
	ScrollZScore   float64 `toml:"scroll_z_score" json:"scroll_z_score" yaml:"scroll_z_score"`

	// BotScore and BotConfidence gate the isBot verdict (both 0-100).
	BotScore      float64 `toml:"bot_score" json:"bot_score" yaml:"bot_score"`
	BotConfidence float64 `toml:"bot_confidence" json:"bot_confidence" yaml:"bot_confidence"`

	// SpikeScore gates the hasSpike verdict (0-100).
	SpikeScore float64 `toml:"spike_score" json:"spike_score" yaml:"spike_score"`

	// ClickFlood is the per-period click count treated as categorical abuse.
	ClickFlood int `toml:"click_flood" json:"click_flood" yaml:"click_flood"`

	// SustainedKeyRate is the productive keys/min ceiling for sustained input.
	SustainedKeyRate int `toml:"sustained_key_rate" json:"sustained_key_rate" yaml:"sustained_key_rate"`

	// LowDiversityKeys flags periods with many productive hits spread over
	// fewer unique keys than this.
	LowDiversityKeys int `toml:"low_diversity_keys" json:"low_diversity_keys" yaml:"low_diversity_keys"`

	// LowDiversityHits is the productive hit count that arms the rule above.
	LowDiversityHits int `toml:"low_diversity_hits" json:"low_diversity_hits" yaml:"low_diversity_hits"`
}

// SessionConfig controls session lifecycle behavior.
type SessionConfig struct {
	// PeriodSeconds is the nominal activity period length.
	PeriodSeconds int `toml:"period_seconds" json:"period_seconds" yaml:"period_seconds"`

	// WindowMinutes is the window length. Must divide 60.
	WindowMinutes int `toml:"window_minutes" json:"window_minutes" yaml:"window_minutes"`

	// MaxPeriodsPerWindow caps periods bucketed into one window.
	MaxPeriodsPerWindow int `toml:"max_periods_per_window" json:"max_periods_per_window" yaml:"max_periods_per_window"`

	// InactiveWindowLimit is the consecutive zero-activity window count
	// that stops the session.
	InactiveWindowLimit int `toml:"inactive_window_limit" json:"inactive_window_limit" yaml:"inactive_window_limit"`

	// IdleSampleSeconds is the idle-probe interval.
	IdleSampleSeconds int `toml:"idle_sample_seconds" json:"idle_sample_seconds" yaml:"idle_sample_seconds"`

	// OverdueGraceSeconds is how far past a scheduled boundary the engine
	// tolerates a late timer before forcing completion.
	OverdueGraceSeconds int `toml:"overdue_grace_seconds" json:"overdue_grace_seconds" yaml:"overdue_grace_seconds"`
}

// BuffersConfig caps the collector's rolling buffers.
type BuffersConfig struct {
	Keystrokes     int `toml:"keystrokes" json:"keystrokes" yaml:"keystrokes"`
	KeyHolds       int `toml:"key_holds" json:"key_holds" yaml:"key_holds"`
	Clicks         int `toml:"clicks" json:"clicks" yaml:"clicks"`
	MousePositions int `toml:"mouse_positions" json:"mouse_positions" yaml:"mouse_positions"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Type is the storage backend type: "sqlite" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the SQLite database file path.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB rotates the log file when it exceeds this size.
	MaxSizeMB int64 `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// TelemetryConfig configures the metrics endpoint.
type TelemetryConfig struct {
	// Enabled turns the HTTP endpoint on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Addr is the listen address, e.g. "127.0.0.1:9857".
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
}

// ProductiveSet returns the productive keycodes as a lookup set.
func (k *KeysConfig) ProductiveSet() map[uint16]bool {
	return toSet(k.Productive)
}

// NavigationSet returns the navigation keycodes as a lookup set.
func (k *KeysConfig) NavigationSet() map[uint16]bool {
	return toSet(k.Navigation)
}

func toSet(codes []uint16) map[uint16]bool {
	set := make(map[uint16]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

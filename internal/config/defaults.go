package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		User: UserConfig{
			ID: "local",
		},
		Keys: KeysConfig{
			Productive: defaultProductiveKeys(),
			Navigation: defaultNavigationKeys(),
		},
		Score: ScoreConfig{
			KeyHitsWeight:      0.25,
			KeyDiversityWeight: 0.45,
			ClicksWeight:       0.10,
			ScrollsWeight:      0.10,
			MovementWeight:     0.10,

			KeyboardBotPenalty:        1.5,
			MouseBotPenalty:           1.0,
			LowActivityPenalty:        1.0,
			VeryLowActivityPenalty:    2.0,
			SuspiciousIntervalPenalty: 1.0,

			KeyboardBonusKeyHits:   150,
			KeyboardBonusUniqueKey: 15,
			MouseBonusClicks:       30,
			MouseBonusDistance:     3000,
			KeyboardBonus:          3.0,
			MouseBonus:             2.0,
			BalancedBonus:          2.5,

			ServerMultiplier: 1.0,
		},
		Bot: BotConfig{
			FlagThreshold:  0.70,
			HardConfidence: 0.60,
			SoftConfidence: 0.50,
		},
		Spike: SpikeConfig{
			HistorySize:      20,
			MinPeriods:       5,
			KeyZScore:        2.5,
			ClickZScore:      2.5,
			DistanceZScore:   3.0,
			ScrollZScore:     3.0,
			BotScore:         60,
			BotConfidence:    60,
			SpikeScore:       40,
			ClickFlood:       100,
			SustainedKeyRate: 400,
			LowDiversityKeys: 3,
			LowDiversityHits: 120,
		},
		Session: SessionConfig{
			PeriodSeconds:       60,
			WindowMinutes:       10,
			MaxPeriodsPerWindow: 10,
			InactiveWindowLimit: 2,
			IdleSampleSeconds:   1,
			OverdueGraceSeconds: 60,
		},
		Buffers: BuffersConfig{
			Keystrokes:     1000,
			KeyHolds:       500,
			Clicks:         500,
			MousePositions: 500,
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			Path:          filepath.Join(DefaultDataDir(), "monitord.db"),
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9857",
		},
	}
}

// DefaultDataDir returns the platform data directory for monitord.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "monitord")
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "monitord")
		}
		return filepath.Join(home, "AppData", "Local", "monitord")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "monitord")
		}
		return filepath.Join(home, ".local", "share", "monitord")
	}
}

// Virtual-key numbering shared with the input hook.
func defaultProductiveKeys() []uint16 {
	var keys []uint16

	// Letters A-Z
	for c := uint16(65); c <= 90; c++ {
		keys = append(keys, c)
	}
	// Digits 0-9 and numpad 0-9
	for c := uint16(48); c <= 57; c++ {
		keys = append(keys, c)
	}
	for c := uint16(96); c <= 105; c++ {
		keys = append(keys, c)
	}
	// Punctuation: ;=,-./` and [\]'
	for c := uint16(186); c <= 192; c++ {
		keys = append(keys, c)
	}
	for c := uint16(219); c <= 222; c++ {
		keys = append(keys, c)
	}
	// Space, enter, backspace
	keys = append(keys, 32, 13, 8)

	return keys
}

func defaultNavigationKeys() []uint16 {
	var keys []uint16

	// Arrows
	for c := uint16(37); c <= 40; c++ {
		keys = append(keys, c)
	}
	// Page up/down, end, home
	for c := uint16(33); c <= 36; c++ {
		keys = append(keys, c)
	}
	// Shift, ctrl, alt
	keys = append(keys, 16, 17, 18)
	// Meta keys
	keys = append(keys, 91, 92, 93)
	// Function keys F1-F12
	for c := uint16(112); c <= 123; c++ {
		keys = append(keys, c)
	}
	// Tab, escape, insert, delete, caps lock
	keys = append(keys, 9, 27, 45, 46, 20)

	return keys
}

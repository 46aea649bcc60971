package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}

	sum := cfg.Score.KeyHitsWeight + cfg.Score.KeyDiversityWeight +
		cfg.Score.ClicksWeight + cfg.Score.ScrollsWeight + cfg.Score.MovementWeight
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("score weights sum to %v, want 1.0", sum)
	}

	if cfg.Spike.HistorySize != 20 {
		t.Errorf("spike history size = %d, want 20", cfg.Spike.HistorySize)
	}
	if cfg.Spike.MinPeriods != 5 {
		t.Errorf("spike min periods = %d, want 5", cfg.Spike.MinPeriods)
	}
	if cfg.Session.WindowMinutes != 10 {
		t.Errorf("window minutes = %d, want 10", cfg.Session.WindowMinutes)
	}
	if cfg.Session.MaxPeriodsPerWindow != 10 {
		t.Errorf("max periods per window = %d, want 10", cfg.Session.MaxPeriodsPerWindow)
	}
	if cfg.Buffers.Keystrokes != 1000 {
		t.Errorf("keystroke buffer cap = %d, want 1000", cfg.Buffers.Keystrokes)
	}
}

func TestKeySets(t *testing.T) {
	cfg := DefaultConfig()

	productive := cfg.Keys.ProductiveSet()
	navigation := cfg.Keys.NavigationSet()

	// Letters and space are productive
	for _, code := range []uint16{65, 90, 32, 13, 8} {
		if !productive[code] {
			t.Errorf("keycode %d should be productive", code)
		}
	}
	// Arrows and modifiers are navigation
	for _, code := range []uint16{37, 40, 16, 112} {
		if !navigation[code] {
			t.Errorf("keycode %d should be navigation", code)
		}
	}
	// No keycode appears in both sets
	for code := range productive {
		if navigation[code] {
			t.Errorf("keycode %d appears in both sets", code)
		}
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Score.KeyHitsWeight = 0.9

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for weights not summing to 1.0")
	}
}

func TestValidateRejectsBadCutoffs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bot.SoftConfidence = 0.9 // above hard cutoff

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for soft cutoff above hard cutoff")
	}
}

func TestValidateRejectsNonDividingWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.WindowMinutes = 7

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for window length not dividing 60")
	}
}

func TestLoadNonexistent(t *testing.T) {
	l := NewLoader("/nonexistent/path/config.toml")
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Spike.HistorySize != 20 {
		t.Error("missing file should yield defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.User.ID = "user-42"
	cfg.Spike.ClickFlood = 250
	cfg.Score.ServerMultiplier = 1.15

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.User.ID != "user-42" {
		t.Errorf("user id = %q, want user-42", loaded.User.ID)
	}
	if loaded.Spike.ClickFlood != 250 {
		t.Errorf("click flood = %d, want 250", loaded.Spike.ClickFlood)
	}
	if loaded.Score.ServerMultiplier != 1.15 {
		t.Errorf("server multiplier = %v, want 1.15", loaded.Score.ServerMultiplier)
	}
}

func TestEnvOverrides(t *testing.T) {
	os.Setenv("MONITORD_USER_ID", "env-user")
	os.Setenv("MONITORD_LOG_LEVEL", "debug")
	defer os.Unsetenv("MONITORD_USER_ID")
	defer os.Unsetenv("MONITORD_LOG_LEVEL")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.User.ID != "env-user" {
		t.Errorf("user id = %q, want env-user", cfg.User.ID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"garbage", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTextLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "stderr"

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if l.Logger == nil {
		t.Fatal("logger has nil slog.Logger")
	}
}

func TestFileOutputAndRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitord.log")

	rotator, err := NewFileRotator(path, 256, 2)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}
	defer rotator.Close()

	line := bytes.Repeat([]byte("x"), 64)
	line = append(line, '\n')
	for i := 0; i < 20; i++ {
		if _, err := rotator.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected at least one rotated backup")
	}
	if len(matches) > 2 {
		t.Errorf("expected at most 2 backups, got %d", len(matches))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("active log file missing after rotation: %v", err)
	}
}

func TestComponentLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitord.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path
	cfg.Format = FormatJSON
	cfg.Component = ""

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Component("window").Info("window complete", "periods", 7)
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"window"`) {
		t.Errorf("log line missing component attr: %s", data)
	}
	if !strings.Contains(string(data), `"periods":7`) {
		t.Errorf("log line missing structured attr: %s", data)
	}
}

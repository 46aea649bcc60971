package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateScore(&c.Score)...)
	errs = append(errs, validateBot(&c.Bot)...)
	errs = append(errs, validateSpike(&c.Spike)...)
	errs = append(errs, validateSession(&c.Session)...)
	errs = append(errs, validateBuffers(&c.Buffers)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateScore(s *ScoreConfig) ValidationErrors {
	var errs ValidationErrors

	sum := s.KeyHitsWeight + s.KeyDiversityWeight + s.ClicksWeight + s.ScrollsWeight + s.MovementWeight
	if math.Abs(sum-1.0) > 0.001 {
		errs = append(errs, ValidationError{
			Field:   "score",
			Message: fmt.Sprintf("component weights sum to %.3f, want 1.0", sum),
		})
	}

	for field, w := range map[string]float64{
		"key_hits_weight":      s.KeyHitsWeight,
		"key_diversity_weight": s.KeyDiversityWeight,
		"clicks_weight":        s.ClicksWeight,
		"scrolls_weight":       s.ScrollsWeight,
		"movement_weight":      s.MovementWeight,
	} {
		if w < 0 || w > 1 {
			errs = append(errs, ValidationError{
				Field:   "score." + field,
				Message: fmt.Sprintf("weight %.3f outside [0,1]", w),
			})
		}
	}

	if s.ServerMultiplier < 0 {
		errs = append(errs, ValidationError{
			Field:   "score.server_multiplier",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateBot(b *BotConfig) ValidationErrors {
	var errs ValidationErrors

	for field, v := range map[string]float64{
		"flag_threshold":  b.FlagThreshold,
		"hard_confidence": b.HardConfidence,
		"soft_confidence": b.SoftConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, ValidationError{
				Field:   "bot." + field,
				Message: fmt.Sprintf("confidence %.2f outside [0,1]", v),
			})
		}
	}
	if b.SoftConfidence > b.HardConfidence {
		errs = append(errs, ValidationError{
			Field:   "bot.soft_confidence",
			Message: "soft cutoff exceeds hard cutoff",
		})
	}

	return errs
}

func validateSpike(s *SpikeConfig) ValidationErrors {
	var errs ValidationErrors

	if s.HistorySize < 2 {
		errs = append(errs, ValidationError{Field: "spike.history_size", Message: "must be at least 2"})
	}
	if s.MinPeriods < 1 || s.MinPeriods > s.HistorySize {
		errs = append(errs, ValidationError{
			Field:   "spike.min_periods",
			Message: fmt.Sprintf("must be in [1, history_size=%d]", s.HistorySize),
		})
	}
	for field, v := range map[string]float64{
		"bot_score":      s.BotScore,
		"bot_confidence": s.BotConfidence,
		"spike_score":    s.SpikeScore,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, ValidationError{
				Field:   "spike." + field,
				Message: fmt.Sprintf("threshold %.1f outside [0,100]", v),
			})
		}
	}

	return errs
}

func validateSession(s *SessionConfig) ValidationErrors {
	var errs ValidationErrors

	if s.PeriodSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "session.period_seconds", Message: "must be positive"})
	}
	if s.WindowMinutes <= 0 || 60%s.WindowMinutes != 0 {
		errs = append(errs, ValidationError{
			Field:   "session.window_minutes",
			Message: fmt.Sprintf("%d does not divide 60", s.WindowMinutes),
		})
	}
	if s.MaxPeriodsPerWindow <= 0 {
		errs = append(errs, ValidationError{Field: "session.max_periods_per_window", Message: "must be positive"})
	}
	if s.InactiveWindowLimit < 1 {
		errs = append(errs, ValidationError{Field: "session.inactive_window_limit", Message: "must be at least 1"})
	}

	return errs
}

func validateBuffers(b *BuffersConfig) ValidationErrors {
	var errs ValidationErrors

	for field, v := range map[string]int{
		"keystrokes":      b.Keystrokes,
		"key_holds":       b.KeyHolds,
		"clicks":          b.Clicks,
		"mouse_positions": b.MousePositions,
	} {
		if v < 10 {
			errs = append(errs, ValidationError{
				Field:   "buffers." + field,
				Message: fmt.Sprintf("cap %d too small for analysis (minimum 10)", v),
			})
		}
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Type {
	case "sqlite":
		if s.Path == "" {
			errs = append(errs, ValidationError{Field: "storage.path", Message: "required for sqlite storage"})
		}
	case "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("unknown type %q (want sqlite or memory)", s.Type),
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", l.Level)})
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", l.Format)})
	}
	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{Field: "logging.file_path", Message: "required for file output"})
		}
	default:
		errs = append(errs, ValidationError{Field: "logging.output", Message: fmt.Sprintf("unknown output %q", l.Output)})
	}

	return errs
}

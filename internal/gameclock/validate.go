package gameclock

import (
	"fmt"

	"github.com/chukwukap/waffles/internal/models"
)

// ConfigurationError marks a malformed game config. Configs are rejected at
// load time; phase evaluation never falls back or guesses.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid game config: " + e.Reason
}

// ValidateConfig checks a game config before it is admitted to the engine.
func ValidateConfig(cfg *models.GameConfig) error {
	if cfg.StartsAt.IsZero() {
		return &ConfigurationError{Reason: "starts_at is not set"}
	}
	if cfg.RoundBreakSec < 0 {
		return &ConfigurationError{Reason: "round_break_sec is negative"}
	}
	for i := range cfg.Questions {
		q := &cfg.Questions[i]
		if q.DurationSec <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("question %d has non-positive duration %d", i, q.DurationSec)}
		}
		if q.Index != i {
			return &ConfigurationError{Reason: fmt.Sprintf("question %d has index %d, must match position", i, q.Index)}
		}
		if q.CorrectOption < 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("question %d has negative correct option", i)}
		}
		if q.BasePoints <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("question %d has non-positive base points", i)}
		}
		if i > 0 && q.RoundIndex < cfg.Questions[i-1].RoundIndex {
			return &ConfigurationError{Reason: fmt.Sprintf("question %d round index regresses", i)}
		}
	}
	if !cfg.EndsAt.IsZero() && cfg.EndsAt.Before(TimelineEnd(cfg)) {
		return &ConfigurationError{Reason: "ends_at falls before the last question window closes"}
	}
	return nil
}

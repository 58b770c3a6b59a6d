// Package gameclock derives a game's live phase from wall-clock time.
//
// There is no stored "current question" pointer anywhere in the system:
// every consumer recomputes the phase from (config, now), so any replica
// answers "what phase is it" identically and nothing can drift.
package gameclock

import (
	"time"

	"github.com/chukwukap/waffles/internal/models"
)

// PhaseKind identifies the stage of a running game.
type PhaseKind string

const (
	PhaseScheduled PhaseKind = "SCHEDULED"
	PhaseQuestion  PhaseKind = "QUESTION"
	PhaseBreak     PhaseKind = "BREAK"
	PhaseEnded     PhaseKind = "ENDED"
)

// Phase is the derived stage of a game at a point in time. For PhaseQuestion,
// Index is the current question; for PhaseBreak it is the index of the
// question the break follows.
type Phase struct {
	Kind  PhaseKind `json:"kind"`
	Index int       `json:"index"`
}

// PhaseAt returns the phase of the game at now. Pure and deterministic;
// all time math is integer milliseconds.
func PhaseAt(cfg *models.GameConfig, now time.Time) Phase {
	if len(cfg.Questions) == 0 {
		return Phase{Kind: PhaseEnded}
	}
	if now.Before(cfg.StartsAt) {
		return Phase{Kind: PhaseScheduled}
	}
	if !cfg.EndsAt.IsZero() && !now.Before(cfg.EndsAt) {
		return Phase{Kind: PhaseEnded}
	}

	offset := now.Sub(cfg.StartsAt).Milliseconds()
	breakMs := int64(cfg.RoundBreakSec) * 1000

	var acc int64
	for i := range cfg.Questions {
		q := &cfg.Questions[i]
		acc += int64(q.DurationSec) * 1000
		if offset < acc {
			return Phase{Kind: PhaseQuestion, Index: i}
		}
		if i+1 < len(cfg.Questions) && cfg.Questions[i+1].RoundIndex != q.RoundIndex {
			acc += breakMs
			if offset < acc {
				return Phase{Kind: PhaseBreak, Index: i}
			}
		}
	}
	return Phase{Kind: PhaseEnded}
}

// QuestionWindow returns the [start, end) interval during which question i
// is current.
func QuestionWindow(cfg *models.GameConfig, i int) (start, end time.Time) {
	startMs, endMs := questionOffsets(cfg, i)
	return cfg.StartsAt.Add(time.Duration(startMs) * time.Millisecond),
		cfg.StartsAt.Add(time.Duration(endMs) * time.Millisecond)
}

// questionOffsets returns question i's window as millisecond offsets from
// StartsAt.
func questionOffsets(cfg *models.GameConfig, i int) (startMs, endMs int64) {
	breakMs := int64(cfg.RoundBreakSec) * 1000
	var acc int64
	for j := 0; j < i; j++ {
		q := &cfg.Questions[j]
		acc += int64(q.DurationSec) * 1000
		if cfg.Questions[j+1].RoundIndex != q.RoundIndex {
			acc += breakMs
		}
	}
	return acc, acc + int64(cfg.Questions[i].DurationSec)*1000
}

// SecondsRemaining returns the whole seconds left in the current phase
// window, rounded up: a display of "1" always maps to a window that has not
// fully elapsed. Ended games report 0; scheduled games report the time
// until start.
func SecondsRemaining(cfg *models.GameConfig, now time.Time) int {
	boundary, ok := NextBoundary(cfg, now)
	if !ok {
		return 0
	}
	return ceilSeconds(boundary.Sub(now).Milliseconds())
}

// NextBoundary returns the instant the current phase ends. ok is false once
// the game has ended; the timeline has no further transitions.
func NextBoundary(cfg *models.GameConfig, now time.Time) (time.Time, bool) {
	phase := PhaseAt(cfg, now)
	switch phase.Kind {
	case PhaseScheduled:
		return cfg.StartsAt, true
	case PhaseQuestion:
		_, end := QuestionWindow(cfg, phase.Index)
		return clampToEnd(cfg, end), true
	case PhaseBreak:
		_, qEnd := QuestionWindow(cfg, phase.Index)
		end := qEnd.Add(time.Duration(cfg.RoundBreakSec) * time.Second)
		return clampToEnd(cfg, end), true
	default:
		return time.Time{}, false
	}
}

// TimelineEnd returns the instant the last question's window closes.
func TimelineEnd(cfg *models.GameConfig) time.Time {
	if len(cfg.Questions) == 0 {
		return cfg.StartsAt
	}
	_, end := QuestionWindow(cfg, len(cfg.Questions)-1)
	return end
}

func clampToEnd(cfg *models.GameConfig, t time.Time) time.Time {
	if !cfg.EndsAt.IsZero() && cfg.EndsAt.Before(t) {
		return cfg.EndsAt
	}
	return t
}

func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

// Package progress reconstructs where a reconnecting or late player should
// be in a game. A player's position is their own answered count, not the
// global clock: a late joiner works through questions behind the shared
// timeline until the backfill below catches them up.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/answer"
	"github.com/chukwukap/waffles/internal/gameclock"
	"github.com/chukwukap/waffles/internal/models"
)

// ErrProgressNotFound is returned by repositories when a player has no
// progress record yet; the tracker treats it as zero answers.
var ErrProgressNotFound = errors.New("player progress not found")

// ProgressRepository reads a player's per-game progress.
type ProgressRepository interface {
	GetPlayerProgress(ctx context.Context, gameID, playerID uuid.UUID) (*models.PlayerProgress, error)
}

// ResumeOutput tells the client which question to show next.
type ResumeOutput struct {
	// Index is the next question for this player.
	Index int `json:"index"`
	// Completed is set when the player has answered every question; they go
	// to final results regardless of the global phase.
	Completed bool `json:"completed"`
	// MissedQuestionIDs lists questions backfilled as timeouts during this
	// resume.
	MissedQuestionIDs []uuid.UUID `json:"missed_question_ids,omitempty"`
}

// Tracker computes resume positions and backfills missed questions.
type Tracker struct {
	games    answer.GameRepository
	progress ProgressRepository
	answers  answer.AnswerRepository
	guard    answer.AcceptanceGuard
	clock    clockwork.Clock
}

// NewTracker creates a resume tracker.
func NewTracker(games answer.GameRepository, progress ProgressRepository, answers answer.AnswerRepository, guard answer.AcceptanceGuard, clock clockwork.Clock) (*Tracker, error) {
	if games == nil || progress == nil || answers == nil || guard == nil {
		return nil, errors.New("tracker dependencies cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{games: games, progress: progress, answers: answers, guard: guard, clock: clock}, nil
}

// Resume returns the question index the player should see. Questions whose
// windows have fully closed without an accepted answer are scored as
// timeouts first, so the returned index never points at a closed window.
func (t *Tracker) Resume(ctx context.Context, gameID, playerID uuid.UUID) (*ResumeOutput, error) {
	now := t.clock.Now()

	cfg, err := t.games.GetGameConfig(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}

	answered := make(map[uuid.UUID]bool)
	prog, err := t.progress.GetPlayerProgress(ctx, gameID, playerID)
	switch {
	case err == nil:
		for _, id := range prog.AnsweredQuestionIDs {
			answered[id] = true
		}
	case errors.Is(err, ErrProgressNotFound):
		// First contact; zero answers.
	default:
		return nil, fmt.Errorf("load player progress: %w", err)
	}

	out := &ResumeOutput{}
	for i := range cfg.Questions {
		q := &cfg.Questions[i]
		if answered[q.ID] {
			continue
		}
		_, windowEnd := gameclock.QuestionWindow(cfg, i)
		if now.Before(windowEnd) {
			break
		}
		if err := t.backfillTimeout(ctx, cfg, i, playerID); err != nil {
			return nil, err
		}
		answered[q.ID] = true
		out.MissedQuestionIDs = append(out.MissedQuestionIDs, q.ID)
	}

	out.Index = len(answered)
	if out.Index >= len(cfg.Questions) {
		out.Completed = true
		out.Index = len(cfg.Questions)
	}

	if len(out.MissedQuestionIDs) > 0 {
		log.Info().
			Str("game_id", gameID.String()).
			Str("player_id", playerID.String()).
			Int("missed", len(out.MissedQuestionIDs)).
			Int("resume_index", out.Index).
			Msg("backfilled missed questions as timeouts")
	}

	return out, nil
}

// backfillTimeout writes a zero-point timeout answer for a closed window.
// The acceptance guard keeps this from racing a real submission that is
// being accepted concurrently.
func (t *Tracker) backfillTimeout(ctx context.Context, cfg *models.GameConfig, idx int, playerID uuid.UUID) error {
	q := &cfg.Questions[idx]
	won, err := t.guard.TryAccept(ctx, cfg.ID, playerID, q.ID)
	if err != nil {
		return fmt.Errorf("claim timeout slot: %w", err)
	}
	if !won {
		// A real submission got there first; nothing to backfill.
		return nil
	}

	scored := &models.ScoredAnswer{
		Submission: models.AnswerSubmission{
			GameID:     cfg.ID,
			PlayerID:   playerID,
			QuestionID: q.ID,
		},
		IsCorrect:       false,
		ServerElapsedMs: int64(q.DurationSec) * 1000,
		PointsAwarded:   0,
		ScoredAt:        t.clock.Now(),
	}
	if err := t.answers.SaveScoredAnswer(ctx, scored); err != nil {
		if relErr := t.guard.Release(ctx, cfg.ID, playerID, q.ID); relErr != nil {
			log.Error().Err(relErr).Str("game_id", cfg.ID.String()).Msg("failed to release timeout slot")
		}
		return fmt.Errorf("save timeout answer: %w", err)
	}
	return nil
}

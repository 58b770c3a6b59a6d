package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/gameclock"
	"github.com/chukwukap/waffles/internal/models"
)

// Service validates and scores answer submissions against the
// server-authoritative clock.
type Service struct {
	games   GameRepository
	answers AnswerRepository
	guard   AcceptanceGuard
	clock   clockwork.Clock
}

// NewService creates the answer service.
func NewService(games GameRepository, answers AnswerRepository, guard AcceptanceGuard, clock clockwork.Clock) (*Service, error) {
	if games == nil {
		return nil, errors.New("game repository cannot be nil")
	}
	if answers == nil {
		return nil, errors.New("answer repository cannot be nil")
	}
	if guard == nil {
		return nil, errors.New("acceptance guard cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{games: games, answers: answers, guard: guard, clock: clock}, nil
}

// Submit accepts at most one scored answer per (game, player, question).
// Elapsed time is measured server-side from the question's window start;
// the client's own elapsed value is advisory and never scored.
func (s *Service) Submit(ctx context.Context, input *SubmitInput) (*SubmitOutput, error) {
	now := s.clock.Now()

	cfg, err := s.games.GetGameConfig(ctx, input.GameID)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}

	phase := gameclock.PhaseAt(cfg, now)
	if phase.Kind != gameclock.PhaseQuestion {
		return nil, ErrWindowClosed
	}

	current := cfg.QuestionByID(input.QuestionID)
	if current == nil || current.Index != phase.Index {
		return nil, ErrStaleQuestion
	}

	accepted, err := s.guard.TryAccept(ctx, input.GameID, input.PlayerID, input.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("acceptance guard: %w", err)
	}
	if !accepted {
		return nil, ErrDuplicateSubmission
	}

	windowStart, windowEnd := gameclock.QuestionWindow(cfg, phase.Index)
	elapsedMs := now.Sub(windowStart).Milliseconds()
	windowMs := windowEnd.Sub(windowStart).Milliseconds()

	isCorrect := input.SelectedOption != nil && *input.SelectedOption == current.CorrectOption

	var points int64
	if isCorrect {
		points = speedScore(current.BasePoints, elapsedMs, windowMs)
	}

	scored := &models.ScoredAnswer{
		Submission: models.AnswerSubmission{
			GameID:          input.GameID,
			PlayerID:        input.PlayerID,
			QuestionID:      input.QuestionID,
			SelectedOption:  input.SelectedOption,
			ClientElapsedMs: input.ClientElapsedMs,
		},
		IsCorrect:       isCorrect,
		ServerElapsedMs: elapsedMs,
		PointsAwarded:   points,
		ScoredAt:        now,
	}

	if err := s.answers.SaveScoredAnswer(ctx, scored); err != nil {
		// Give the slot back so the player's retry is not rejected as a
		// duplicate of a submission that was never persisted.
		if relErr := s.guard.Release(ctx, input.GameID, input.PlayerID, input.QuestionID); relErr != nil {
			log.Error().Err(relErr).
				Str("game_id", input.GameID.String()).
				Str("player_id", input.PlayerID.String()).
				Msg("failed to release acceptance slot after save failure")
		}
		return nil, fmt.Errorf("save scored answer: %w", err)
	}

	log.Info().
		Str("game_id", input.GameID.String()).
		Str("player_id", input.PlayerID.String()).
		Str("question_id", input.QuestionID.String()).
		Bool("correct", isCorrect).
		Int64("points", points).
		Int64("server_elapsed_ms", elapsedMs).
		Msg("answer accepted")

	return &SubmitOutput{Scored: scored}, nil
}

// speedScore scales basePoints down linearly over the window: an instant
// correct answer earns full points, a last-instant one earns half. Correct
// always beats incorrect, which scores 0.
func speedScore(basePoints, elapsedMs, windowMs int64) int64 {
	if windowMs <= 0 {
		return basePoints
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > windowMs {
		elapsedMs = windowMs
	}
	return basePoints - basePoints*elapsedMs/(2*windowMs)
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chukwukap/waffles/internal/models"
)

const insertAnswerQuery = `
INSERT INTO answers (id, game_id, player_id, question_id, selected_option, is_correct, server_elapsed_ms, points_awarded, scored_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const applyAnswerToProgressQuery = `
INSERT INTO game_players (id, game_id, player_id, answered_question_ids, score, created_at, updated_at)
VALUES ($1, $2, $3, ARRAY[$4]::uuid[], $5, now(), now())
ON CONFLICT (game_id, player_id) DO UPDATE
SET answered_question_ids = array_append(game_players.answered_question_ids, $4),
    score      = game_players.score + $5,
    updated_at = now()`

// SaveScoredAnswer records the verdict and folds it into the player's
// progress row in one transaction. The acceptance guard upstream means the
// answers unique index only trips if the guard itself regressed, and then
// the whole transaction rolls back.
func (r *Repository) SaveScoredAnswer(ctx context.Context, scored *models.ScoredAnswer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub := scored.Submission
	_, err = tx.Exec(ctx, insertAnswerQuery,
		uuid.New(),
		sub.GameID,
		sub.PlayerID,
		sub.QuestionID,
		sub.SelectedOption,
		scored.IsCorrect,
		scored.ServerElapsedMs,
		scored.PointsAwarded,
		scored.ScoredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}

	_, err = tx.Exec(ctx, applyAnswerToProgressQuery,
		uuid.New(),
		sub.GameID,
		sub.PlayerID,
		sub.QuestionID,
		scored.PointsAwarded,
	)
	if err != nil {
		return fmt.Errorf("failed to apply answer to progress: %w", err)
	}

	return tx.Commit(ctx)
}

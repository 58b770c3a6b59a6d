package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chukwukap/waffles/internal/models"
)

const getGameQuery = `
SELECT id, round_break_sec, starts_at, ends_at, pot_minor_units, status, created_at, updated_at
FROM games
WHERE id = $1`

const getQuestionsQuery = `
SELECT id, game_id, idx, round_idx, duration_sec, correct_option, base_points
FROM questions
WHERE game_id = $1
ORDER BY idx`

// GetGameConfig loads a game and its ordered questions.
func (r *Repository) GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error) {
	var cfg models.GameConfig
	err := r.pool.QueryRow(ctx, getGameQuery, gameID).Scan(
		&cfg.ID,
		&cfg.RoundBreakSec,
		&cfg.StartsAt,
		&cfg.EndsAt,
		&cfg.PotMinorUnits,
		&cfg.Status,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	rows, err := r.pool.Query(ctx, getQuestionsQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.GameID, &q.Index, &q.RoundIndex, &q.DurationSec, &q.CorrectOption, &q.BasePoints); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		cfg.Questions = append(cfg.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return &cfg, nil
}

// ListGamesByStatus returns full configs for every game in the status, used
// by the session engine to pick up its watch set on startup.
func (r *Repository) ListGamesByStatus(ctx context.Context, status models.GameStatus) ([]*models.GameConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM games WHERE status = $1 ORDER BY starts_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	configs := make([]*models.GameConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := r.GetGameConfig(ctx, id)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// UpdateGameStatus moves a game's persisted lifecycle status.
func (r *Repository) UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status models.GameStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE games SET status = $2, updated_at = now() WHERE id = $1`, gameID, status)
	if err != nil {
		return fmt.Errorf("failed to update game status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	return nil
}

// MarkSettlementEligible flags an ended game for the settlement runner.
func (r *Repository) MarkSettlementEligible(ctx context.Context, gameID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE games SET status = $2, settlement_eligible = TRUE, updated_at = now() WHERE id = $1`,
		gameID, models.GameStatusEnded)
	if err != nil {
		return fmt.Errorf("failed to mark game settlement-eligible: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	return nil
}

// ListSettlementEligible returns games waiting for a settlement run.
func (r *Repository) ListSettlementEligible(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM games WHERE settlement_eligible AND status = $1 ORDER BY ends_at`,
		models.GameStatusEnded)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement-eligible games: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkGameSettled closes out a fully paid game; it leaves the eligibility
// set at the same time.
func (r *Repository) MarkGameSettled(ctx context.Context, gameID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE games SET status = $2, settlement_eligible = FALSE, updated_at = now() WHERE id = $1`,
		gameID, models.GameStatusSettled)
	if err != nil {
		return fmt.Errorf("failed to mark game settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	return nil
}

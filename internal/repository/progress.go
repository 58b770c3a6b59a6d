package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chukwukap/waffles/internal/models"
	"github.com/chukwukap/waffles/internal/progress"
)

const getPlayerProgressQuery = `
SELECT id, game_id, player_id, wallet_address, answered_question_ids, score, rank, prize_minor_units, claimed_at, created_at, updated_at
FROM game_players
WHERE game_id = $1 AND player_id = $2`

// Standings order: score first, then total answer time so faster players win
// ties, then join order for full determinism.
const listFinalStandingsQuery = `
SELECT gp.id, gp.game_id, gp.player_id, gp.wallet_address, gp.answered_question_ids,
       gp.score, gp.rank, gp.prize_minor_units, gp.claimed_at, gp.created_at, gp.updated_at
FROM game_players gp
LEFT JOIN (
    SELECT game_id, player_id, SUM(server_elapsed_ms) AS total_elapsed_ms
    FROM answers
    GROUP BY game_id, player_id
) a ON a.game_id = gp.game_id AND a.player_id = gp.player_id
WHERE gp.game_id = $1
ORDER BY gp.score DESC, COALESCE(a.total_elapsed_ms, 0) ASC, gp.created_at ASC`

// JoinGame registers a player in a game. Rejoining is a no-op.
func (r *Repository) JoinGame(ctx context.Context, gameID, playerID uuid.UUID, walletAddress string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO game_players (id, game_id, player_id, wallet_address, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (game_id, player_id) DO NOTHING`,
		uuid.New(), gameID, playerID, walletAddress)
	if err != nil {
		return fmt.Errorf("failed to join game: %w", err)
	}
	return nil
}

// GetPlayerProgress loads one player's standing in a game.
func (r *Repository) GetPlayerProgress(ctx context.Context, gameID, playerID uuid.UUID) (*models.PlayerProgress, error) {
	p, err := scanProgress(r.pool.QueryRow(ctx, getPlayerProgressQuery, gameID, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, progress.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player progress: %w", err)
	}
	return p, nil
}

// ListFinalStandings returns every game player in final rank order.
func (r *Repository) ListFinalStandings(ctx context.Context, gameID uuid.UUID) ([]*models.PlayerProgress, error) {
	rows, err := r.pool.Query(ctx, listFinalStandingsQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	defer rows.Close()

	var standings []*models.PlayerProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, p)
	}
	return standings, rows.Err()
}

// UpdateStanding persists the computed rank and prize before payout starts.
func (r *Repository) UpdateStanding(ctx context.Context, gamePlayerID uuid.UUID, rank int, prizeMinorUnits int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE game_players SET rank = $2, prize_minor_units = $3, updated_at = now() WHERE id = $1`,
		gamePlayerID, rank, prizeMinorUnits)
	if err != nil {
		return fmt.Errorf("failed to update standing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game player %s not found", gamePlayerID)
	}
	return nil
}

// MarkClaimed is the settlement commit point. The claim timestamp is set
// only if it is still unset; claimed reports whether this call set it.
func (r *Repository) MarkClaimed(ctx context.Context, gamePlayerID uuid.UUID, txRef string, claimedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE game_players
SET claimed_at = $3, tx_ref = $2, updated_at = now()
WHERE id = $1 AND claimed_at IS NULL`,
		gamePlayerID, txRef, claimedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark claimed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish an already-claimed row from a missing one.
	var existing *time.Time
	err = r.pool.QueryRow(ctx, `SELECT claimed_at FROM game_players WHERE id = $1`, gamePlayerID).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("game player %s not found", gamePlayerID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check claim state: %w", err)
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.PlayerProgress, error) {
	var p models.PlayerProgress
	err := row.Scan(
		&p.ID,
		&p.GameID,
		&p.PlayerID,
		&p.WalletAddress,
		&p.AnsweredQuestionIDs,
		&p.Score,
		&p.Rank,
		&p.PrizeMinorUnits,
		&p.ClaimedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

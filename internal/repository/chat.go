package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chukwukap/waffles/internal/models"
)

// InsertChatMessage persists a confirmed chat message for late-join backfill.
func (r *Repository) InsertChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO chat_messages (id, game_id, player_id, text, sent_at)
VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.GameID, msg.PlayerID, msg.Text, msg.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// ListRecentChat returns the newest messages for a game, oldest first.
func (r *Repository) ListRecentChat(ctx context.Context, gameID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, game_id, player_id, text, sent_at
FROM (
    SELECT id, game_id, player_id, text, sent_at
    FROM chat_messages
    WHERE game_id = $1
    ORDER BY sent_at DESC
    LIMIT $2
) newest
ORDER BY sent_at ASC`,
		gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.GameID, &msg.PlayerID, &msg.Text, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

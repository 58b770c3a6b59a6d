package repository

import (
	"context"
	"fmt"

	"github.com/chukwukap/waffles/internal/models"
)

// InsertAuditEntry appends one settlement attempt to the audit trail.
// Amounts are token minor units, so they fit a bigint column exactly.
func (r *Repository) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO settlement_audit (id, game_player_id, attempt, amount_minor_units, recipient, tx_ref, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		entry.GamePlayerID,
		entry.Attempt,
		entry.Amount.IntPart(),
		entry.Recipient,
		entry.TxRef,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

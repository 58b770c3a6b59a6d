package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutJob is an ephemeral unit of settlement work, built fresh each run.
// The terminal state lives on the PlayerProgress record (ClaimedAt), which
// is the idempotency key: a job is a no-op when it is already set.
type PayoutJob struct {
	PlayerID      uuid.UUID       `json:"player_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount_minor_units"`
	GamePlayerID  uuid.UUID       `json:"game_player_id"`
	Attempt       int             `json:"attempt"`
}

// PayoutOutcome is the final, externally observable result of a payout job.
type PayoutOutcome string

const (
	PayoutSucceeded PayoutOutcome = "SUCCEEDED"
	PayoutFailed    PayoutOutcome = "FAILED"
)

// PayoutResult records what happened to one winner's payout.
type PayoutResult struct {
	GamePlayerID   uuid.UUID       `json:"game_player_id"`
	PlayerID       uuid.UUID       `json:"player_id"`
	Outcome        PayoutOutcome   `json:"outcome"`
	TxRef          string          `json:"tx_ref,omitempty"`
	Amount         decimal.Decimal `json:"amount_minor_units"`
	Attempts       int             `json:"attempts"`
	AlreadyClaimed bool            `json:"already_claimed"`
	FailureReason  string          `json:"failure_reason,omitempty"`
}

// SettlementReport is the operator-facing summary of one settlement run.
// Intermediate attempt failures never reach the player-facing layer; this
// report is where they surface.
type SettlementReport struct {
	GameID      uuid.UUID       `json:"game_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	TotalPaid   decimal.Decimal `json:"total_paid_minor_units"`
	Results     []PayoutResult  `json:"results"`
	FailedCount int             `json:"failed_count"`
}

// AuditEntry is one row of the settlement audit trail, written per attempt.
type AuditEntry struct {
	ID           uuid.UUID       `json:"id"`
	GamePlayerID uuid.UUID       `json:"game_player_id"`
	Attempt      int             `json:"attempt"`
	Amount       decimal.Decimal `json:"amount_minor_units"`
	Recipient    string          `json:"recipient"`
	TxRef        string          `json:"tx_ref,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

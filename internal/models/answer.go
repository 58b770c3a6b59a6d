package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSubmission is what a player sends for the current question.
// SelectedOption is nil for an explicit timeout/no-answer.
type AnswerSubmission struct {
	GameID          uuid.UUID `json:"game_id"`
	PlayerID        uuid.UUID `json:"player_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	SelectedOption  *int      `json:"selected_option,omitempty"`
	ClientElapsedMs int64     `json:"client_elapsed_ms"` // advisory only, never used for scoring
}

// ScoredAnswer is an accepted submission with its server-side verdict.
// ServerElapsedMs is measured from the question's window start on the
// server clock.
type ScoredAnswer struct {
	Submission      AnswerSubmission `json:"submission"`
	IsCorrect       bool             `json:"is_correct"`
	ServerElapsedMs int64            `json:"server_elapsed_ms"`
	PointsAwarded   int64            `json:"points_awarded"`
	ScoredAt        time.Time        `json:"scored_at"`
}

// PlayerProgress tracks a player's per-game standing. The answered set and
// score are owned by the answer service; prize, rank and claim state are
// owned by settlement.
type PlayerProgress struct {
	ID                  uuid.UUID   `json:"id"` // game-player record id, settlement idempotency anchor
	GameID              uuid.UUID   `json:"game_id"`
	PlayerID            uuid.UUID   `json:"player_id"`
	WalletAddress       string      `json:"wallet_address"`
	AnsweredQuestionIDs []uuid.UUID `json:"answered_question_ids"`
	Score               int64       `json:"score"`
	Rank                int         `json:"rank"`
	PrizeMinorUnits     int64       `json:"prize_minor_units"`
	ClaimedAt           *time.Time  `json:"claimed_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

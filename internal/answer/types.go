package answer

import (
	"context"

	"github.com/google/uuid"

	"github.com/chukwukap/waffles/internal/models"
)

// SubmitInput carries one answer submission. A nil SelectedOption is an
// explicit timeout/no-answer and always scores zero.
type SubmitInput struct {
	GameID          uuid.UUID
	PlayerID        uuid.UUID
	QuestionID      uuid.UUID
	SelectedOption  *int
	ClientElapsedMs int64
}

// SubmitOutput is returned on acceptance.
type SubmitOutput struct {
	Scored *models.ScoredAnswer `json:"scored"`
}

// GameRepository supplies immutable game configuration.
type GameRepository interface {
	GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error)
}

// AnswerRepository persists accepted answers. SaveScoredAnswer must append
// the question to the player's answered set and add the points in a single
// transaction.
type AnswerRepository interface {
	SaveScoredAnswer(ctx context.Context, scored *models.ScoredAnswer) error
}

// AcceptanceGuard is the linearizable check-and-set that upholds the
// at-most-one accepted submission invariant per (game, player, question).
// TryAccept returns false when another submission already won the slot.
type AcceptanceGuard interface {
	TryAccept(ctx context.Context, gameID, playerID, questionID uuid.UUID) (bool, error)
	Release(ctx context.Context, gameID, playerID, questionID uuid.UUID) error
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the persisted lifecycle status of a game record.
// The live phase (question/break) is never stored; it is derived from
// wall-clock time by the gameclock package.
type GameStatus string

const (
	GameStatusScheduled GameStatus = "SCHEDULED"
	GameStatusLive      GameStatus = "LIVE"
	GameStatusEnded     GameStatus = "ENDED"
	GameStatusSettled   GameStatus = "SETTLED"
)

// Question is a single timed question within a game.
type Question struct {
	ID            uuid.UUID `json:"id"`
	GameID        uuid.UUID `json:"game_id"`
	Index         int       `json:"index"`       // position in the game, 0-based
	RoundIndex    int       `json:"round_index"` // questions with the same round share no break between them
	DurationSec   int       `json:"duration_sec"`
	CorrectOption int       `json:"correct_option"`
	BasePoints    int64     `json:"base_points"`
}

// GameConfig is the immutable configuration of a game once it starts.
// Owned by persistence; the engine only reads it.
type GameConfig struct {
	ID              uuid.UUID  `json:"id"`
	Questions       []Question `json:"questions"`
	RoundBreakSec   int        `json:"round_break_sec"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	PotMinorUnits   int64      `json:"pot_minor_units"`
	Status          GameStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// QuestionByID returns the question with the given id, or nil.
func (c *GameConfig) QuestionByID(id uuid.UUID) *Question {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return &c.Questions[i]
		}
	}
	return nil
}

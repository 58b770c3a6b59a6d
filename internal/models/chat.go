package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a server-confirmed chat line, persisted for late-join
// backfill. The realtime copy travels the event bus; this is the durable one.
type ChatMessage struct {
	ID       uuid.UUID `json:"id"`
	GameID   uuid.UUID `json:"game_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

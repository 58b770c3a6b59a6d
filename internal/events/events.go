// Package events defines the wire envelope and payloads shared by the
// session engine, the event bus, and the gateway. Payloads live here to
// avoid import cycles between those packages.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies a game event on the bus and over the websocket.
type Type string

const (
	TypePhaseChanged    Type = "PhaseChanged"
	TypeGameEnded       Type = "GameEnded"
	TypeChatMessage     Type = "ChatMessage"
	TypePresenceChanged Type = "PresenceChanged"
	TypeCheer           Type = "Cheer"
)

// Event is the envelope every game event travels in.
type Event struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New wraps a payload in an envelope. Marshal failures are impossible for
// the payload types in this package, so the error is swallowed into an
// empty body rather than threaded through every emit site.
func New(gameID uuid.UUID, typ Type, payload any, now time.Time) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return &Event{
		ID:        uuid.New().String(),
		GameID:    gameID.String(),
		Type:      typ,
		Timestamp: now,
		Data:      data,
	}
}

// PhaseChangedPayload announces that the derived phase differs from the
// last broadcast one. Deadline lets clients run presentation-only
// countdowns; the authoritative transition is always recomputed server-side.
type PhaseChangedPayload struct {
	Phase            string     `json:"phase"`
	QuestionIndex    int        `json:"question_index"`
	SecondsRemaining int        `json:"seconds_remaining"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// GameEndedPayload is the terminal transition for a game channel.
type GameEndedPayload struct {
	EndedAt time.Time `json:"ended_at"`
}

// ChatMessagePayload carries a server-confirmed chat message. ClientTag is
// the client's correlation id for reconciling its optimistic entry.
type ChatMessagePayload struct {
	PlayerID  string    `json:"player_id"`
	Text      string    `json:"text"`
	ClientTag string    `json:"client_tag,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// PresenceChangedPayload carries the new online count for a game channel.
type PresenceChangedPayload struct {
	OnlineCount int64 `json:"online_count"`
}

// CheerPayload is an ephemeral reaction event.
type CheerPayload struct {
	PlayerID string `json:"player_id"`
	Emoji    string `json:"emoji"`
}

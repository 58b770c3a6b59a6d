package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/events"
)

const maxChatLength = 280

// clientMessage is what players send over the socket. ClientTag is echoed
// back on the confirmed event so the client can reconcile its optimistic
// entry.
type clientMessage struct {
	Type      string `json:"type"` // "chat" | "cheer"
	Text      string `json:"text,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	ClientTag string `json:"client_tag,omitempty"`
}

// handleClientMessage routes a chat or cheer from this subscriber onto the
// bus. Ended games accept no new traffic.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("dropping malformed client message")
		return
	}

	if c.Manager.isEnded(c.GameID) {
		log.Debug().
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Msg("dropping client message for ended game")
		return
	}

	now := c.Manager.now()
	var event *events.Event

	switch msg.Type {
	case "chat":
		text := truncateChat(strings.TrimSpace(msg.Text))
		if text == "" {
			return
		}
		event = events.New(c.GameID, events.TypeChatMessage, events.ChatMessagePayload{
			PlayerID:  c.PlayerID.String(),
			Text:      text,
			ClientTag: msg.ClientTag,
			SentAt:    now,
		}, now)
	case "cheer":
		if msg.Emoji == "" {
			return
		}
		event = events.New(c.GameID, events.TypeCheer, events.CheerPayload{
			PlayerID: c.PlayerID.String(),
			Emoji:    msg.Emoji,
		}, now)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("unknown client message type")
		return
	}

	if err := c.Manager.publisher.Publish(context.Background(), event); err != nil {
		log.Error().Err(err).
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Msg("failed to publish client event")
	}
}

// truncateChat caps chat text at maxChatLength runes. Truncation happens on
// a rune boundary so a multi-byte character is never split.
func truncateChat(text string) string {
	if utf8.RuneCountInString(text) <= maxChatLength {
		return text
	}
	return string([]rune(text)[:maxChatLength])
}

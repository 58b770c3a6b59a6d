package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chukwukap/waffles/internal/events"
)

func decodePayload(event *events.Event, v any) error {
	return json.Unmarshal(event.Data, v)
}

func chatEvent(t *testing.T, gameID uuid.UUID, text string) *events.Event {
	t.Helper()
	return events.New(gameID, events.TypeChatMessage, events.ChatMessagePayload{
		PlayerID: uuid.New().String(),
		Text:     text,
		SentAt:   time.Now().UTC(),
	}, time.Now().UTC())
}

func TestEventRingEvictsOldest(t *testing.T) {
	ring := NewEventRing(3)
	gameID := uuid.New()

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		ring.Add(gameID, chatEvent(t, gameID, text))
	}

	recent := ring.Recent(gameID)
	require.Len(t, recent, 3)

	var texts []string
	for _, event := range recent {
		var payload events.ChatMessagePayload
		require.NoError(t, decodePayload(event, &payload))
		texts = append(texts, payload.Text)
	}
	assert.Equal(t, []string{"c", "d", "e"}, texts, "oldest events must be evicted first")
}

func TestEventRingIsolatesGames(t *testing.T) {
	ring := NewEventRing(8)
	gameA := uuid.New()
	gameB := uuid.New()

	ring.Add(gameA, chatEvent(t, gameA, "hello"))

	assert.Len(t, ring.Recent(gameA), 1)
	assert.Empty(t, ring.Recent(gameB))
}

func TestEventRingDrop(t *testing.T) {
	ring := NewEventRing(8)
	gameID := uuid.New()

	ring.Add(gameID, chatEvent(t, gameID, "hello"))
	ring.Drop(gameID)

	assert.Empty(t, ring.Recent(gameID))
}

func TestEventRingRecentReturnsCopy(t *testing.T) {
	ring := NewEventRing(8)
	gameID := uuid.New()

	ring.Add(gameID, chatEvent(t, gameID, "hello"))
	first := ring.Recent(gameID)
	first[0] = nil

	recent := ring.Recent(gameID)
	require.Len(t, recent, 1)
	assert.NotNil(t, recent[0])
}

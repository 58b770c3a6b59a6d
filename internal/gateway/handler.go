package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// playerIDHeader carries the verified player identity, set by the
// authentication collaborator upstream. The gateway trusts it.
const playerIDHeader = "X-Player-ID"

// WebSocketHandler handles websocket upgrade requests for game channels.
type WebSocketHandler struct {
	manager *ConnectionManager
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(manager *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{manager: manager}
}

// HandleGameConnection subscribes the caller to a game channel.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameIDStr := r.URL.Query().Get("game_id")
	if gameIDStr == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}

	playerID, err := uuid.Parse(r.Header.Get(playerIDHeader))
	if err != nil {
		http.Error(w, "missing verified player identity", http.StatusUnauthorized)
		return
	}

	if err := h.manager.UpgradeConnection(w, r, playerID, gameID); err != nil {
		log.Error().Err(err).
			Str("game_id", gameID.String()).
			Str("player_id", playerID.String()).
			Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, perGame := h.manager.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"game_connections":  perGame,
	})
}

// RegisterRoutes registers the websocket routes on the mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", h.HandleGameConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

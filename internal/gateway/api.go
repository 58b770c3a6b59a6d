package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/answer"
	"github.com/chukwukap/waffles/internal/models"
	"github.com/chukwukap/waffles/internal/progress"
)

// PlayerRegistry enrolls players into games.
type PlayerRegistry interface {
	JoinGame(ctx context.Context, gameID, playerID uuid.UUID, walletAddress string) error
}

// ChatHistory serves persisted chat for late joiners.
type ChatHistory interface {
	ListRecentChat(ctx context.Context, gameID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// APIHandler exposes the REST surface next to the websocket routes: answer
// submission, resume, join and chat backfill.
type APIHandler struct {
	answers  *answer.Service
	tracker  *progress.Tracker
	registry PlayerRegistry
	chat     ChatHistory
}

// NewAPIHandler creates the REST handler.
func NewAPIHandler(answers *answer.Service, tracker *progress.Tracker, registry PlayerRegistry, chat ChatHistory) (*APIHandler, error) {
	if answers == nil || tracker == nil || registry == nil || chat == nil {
		return nil, errors.New("api handler dependencies cannot be nil")
	}
	return &APIHandler{answers: answers, tracker: tracker, registry: registry, chat: chat}, nil
}

// RegisterRoutes registers the REST routes on the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/{game_id}/join", h.handleJoin)
	mux.HandleFunc("POST /api/games/{game_id}/answers", h.handleSubmitAnswer)
	mux.HandleFunc("GET /api/games/{game_id}/resume", h.handleResume)
	mux.HandleFunc("GET /api/games/{game_id}/chat", h.handleChat)
}

type joinRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (h *APIHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.registry.JoinGame(r.Context(), gameID, playerID, req.WalletAddress); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("join failed")
		writeError(w, http.StatusInternalServerError, "join failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitAnswerRequest struct {
	QuestionID      uuid.UUID `json:"question_id"`
	SelectedOption  *int      `json:"selected_option"`
	ClientElapsedMs int64     `json:"client_elapsed_ms"`
}

func (h *APIHandler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := h.answers.Submit(r.Context(), &answer.SubmitInput{
		GameID:          gameID,
		PlayerID:        playerID,
		QuestionID:      req.QuestionID,
		SelectedOption:  req.SelectedOption,
		ClientElapsedMs: req.ClientElapsedMs,
	})
	switch {
	case errors.Is(err, answer.ErrWindowClosed):
		writeError(w, http.StatusConflict, "answer window is closed")
	case errors.Is(err, answer.ErrStaleQuestion):
		writeError(w, http.StatusConflict, "question is no longer current")
	case errors.Is(err, answer.ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, "answer already submitted")
	case err != nil:
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("answer submission failed")
		writeError(w, http.StatusInternalServerError, "submission failed")
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *APIHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	gameID, playerID, ok := h.identify(w, r)
	if !ok {
		return
	}
	out, err := h.tracker.Resume(r.Context(), gameID, playerID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("resume failed")
		writeError(w, http.StatusInternalServerError, "resume failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	gameID, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	messages, err := h.chat.ListRecentChat(r.Context(), gameID, 50)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("chat backfill failed")
		writeError(w, http.StatusInternalServerError, "chat backfill failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// identify parses the game id from the path and the verified player identity
// from the auth header.
func (h *APIHandler) identify(w http.ResponseWriter, r *http.Request) (gameID, playerID uuid.UUID, ok bool) {
	gameID, err := uuid.Parse(r.PathValue("game_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return uuid.Nil, uuid.Nil, false
	}
	playerID, err = uuid.Parse(r.Header.Get(playerIDHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing verified player identity")
		return uuid.Nil, uuid.Nil, false
	}
	return gameID, playerID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

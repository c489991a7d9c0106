package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/internal/storage"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// CreateSessionRequest names a stored seed or carries one inline.
type CreateSessionRequest struct {
	SeedID string      `json:"seed_id,omitempty"`
	Seed   *state.Seed `json:"seed,omitempty"`
}

// SessionResponse describes a session after create, read or a state change.
type SessionResponse struct {
	SessionID uuid.UUID          `json:"session_id"`
	Started   bool               `json:"started"`
	Message   string             `json:"message,omitempty"`
	Outcome   string             `json:"outcome,omitempty"`
	State     state.WorldState   `json:"state"`
	History   []chat.ChatMessage `json:"history,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// SessionsHandler serves
// POST   /v1/sessions                  - create from a seed and play the opening turn
// GET    /v1/sessions/{id}             - current state and transcript
// POST   /v1/sessions/{id}/start       - retry a failed opening turn
// POST   /v1/sessions/{id}/turns       - play one turn
// POST   /v1/sessions/{id}/cancel      - abort the in-flight turn
// POST   /v1/sessions/{id}/clear-error - clear the error flag
// DELETE /v1/sessions/{id}             - end the session
type SessionsHandler struct {
	manager *session.Manager
	seeds   SeedSource
	logger  *slog.Logger
}

func NewSessionsHandler(manager *session.Manager, seeds SeedSource, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		manager: manager,
		seeds:   seeds,
		logger:  logger,
	}
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/v1/sessions")

	if len(segments) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	id, ok := parseSessionID(w, h.logger, segments[0])
	if !ok {
		return
	}

	action := ""
	if len(segments) == 2 {
		action = segments[1]
	} else if len(segments) > 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleRead(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case action == "start" && r.Method == http.MethodPost:
		h.handleStart(w, r, id)
	case action == "turns" && r.Method == http.MethodPost:
		h.handleTurn(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		h.handleCancel(w, id)
	case action == "clear-error" && r.Method == http.MethodPost:
		h.handleClearError(w, r, id)
	case action == "" || action == "start" || action == "turns" || action == "cancel" || action == "clear-error":
		h.logger.Warn("Method not allowed for sessions endpoint", "method", r.Method, "action", action)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid create session body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'seed_id' or 'seed'.")
		return
	}

	seed := req.Seed
	if seed == nil {
		if req.SeedID == "" {
			writeError(w, h.logger, http.StatusBadRequest, "Either 'seed_id' or 'seed' is required")
			return
		}
		loaded, err := h.seeds.GetSeed(r.Context(), req.SeedID)
		if err != nil {
			if errors.Is(err, storage.ErrSeedNotFound) {
				writeError(w, h.logger, http.StatusNotFound, "Seed not found")
				return
			}
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		seed = loaded
	}

	s, err := h.manager.Create(r.Context(), *seed)
	if err != nil {
		h.logger.Warn("Failed to create session", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	resp := SessionResponse{SessionID: s.ID()}
	turn, err := h.manager.Start(r.Context(), s.ID())
	if err != nil {
		// The session exists; the opening turn can be retried by the client
		// and the failure is recorded in the state's error flag.
		h.logger.Error("Opening turn failed", "session_id", s.ID(), "error", err)
		resp.Error = err.Error()
	} else {
		resp.Message = turn.Message
		resp.Outcome = string(turn.Outcome)
	}
	resp.Started = s.Started()
	resp.State = s.State()
	writeJSON(w, h.logger, http.StatusCreated, resp)
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{
		SessionID: id,
		Started:   s.Started(),
		State:     s.State(),
		History:   s.History(),
	})
}

func (h *SessionsHandler) handleStart(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	turn, err := h.manager.Start(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, chat.TurnResponse{
		SessionID: id,
		TurnID:    turn.ID,
		Message:   turn.Message,
		Outcome:   string(turn.Outcome),
		State:     turn.State,
	})
}

func (h *SessionsHandler) handleTurn(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	req := chat.TurnRequest{SessionID: id}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid turn body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}
	req.SessionID = id
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := h.manager.Submit(r.Context(), id, req.Message)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, chat.TurnResponse{
		SessionID: id,
		TurnID:    turn.ID,
		Message:   turn.Message,
		Outcome:   string(turn.Outcome),
		State:     turn.State,
	})
}

func (h *SessionsHandler) handleCancel(w http.ResponseWriter, id uuid.UUID) {
	if err := h.manager.Cancel(id); err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, nil)
}

func (h *SessionsHandler) handleClearError(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	ws, err := h.manager.ClearError(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	resp := SessionResponse{SessionID: id, State: ws}
	if s, err := h.manager.Get(r.Context(), id); err == nil {
		resp.Started = s.Started()
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.writeSessionError(w, id, err)
		return
	}
	h.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// writeSessionError maps session errors to status codes.
func (h *SessionsHandler) writeSessionError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrTurnInFlight), errors.Is(err, session.ErrAlreadyStarted):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, h.logger, http.StatusGone, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, h.logger, http.StatusConflict, "Turn was cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, h.logger, http.StatusGatewayTimeout, "The game master did not answer in time")
	default:
		h.logger.Error("Session request failed", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "Failed to reach the game master. Please try again.")
	}
}

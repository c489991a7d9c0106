package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/ingest"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// IngestResponse is the result of running one generator response against a
// caller-supplied state.
type IngestResponse struct {
	ingest.Result
	// Stage names the failing pipeline stage of a rejected response.
	Stage string `json:"stage,omitempty"`
}

// IngestHandler serves POST /v1/ingest. It is stateless: the caller sends the
// world state and gets the next one back.
type IngestHandler struct {
	engine *ingest.Engine
	logger *slog.Logger
}

func NewIngestHandler(logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		engine: ingest.NewEngine(logger),
		logger: logger,
	}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for ingest endpoint", "method", r.Method)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req chat.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid ingest request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'state' and 'text' fields.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	result := h.engine.Ingest(req.State, req.Text)
	resp := IngestResponse{Result: result}
	if result.Err != nil {
		resp.Stage = ingest.Stage(result.Err)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ReduceResponse carries the state after one command.
type ReduceResponse struct {
	State state.WorldState `json:"state"`
}

// ReduceHandler serves POST /v1/reduce: one command applied to one state.
type ReduceHandler struct {
	logger *slog.Logger
}

func NewReduceHandler(logger *slog.Logger) *ReduceHandler {
	return &ReduceHandler{logger: logger}
}

func (h *ReduceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req chat.ReduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid reduce request body", "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, state.ErrUnknownCommand) || errors.Is(err, state.ErrInvalidPayload) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, h.logger, status, err.Error())
		return
	}

	next, err := state.Reduce(req.State, req.Command)
	if err != nil {
		h.logger.Info("Command rejected", "kind", req.Command.Type, "error", err)
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReduceResponse{State: next})
}

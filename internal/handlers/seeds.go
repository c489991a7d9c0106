package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/gm-engine/internal/storage"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// SeedSource lists and loads character/campaign seeds.
type SeedSource interface {
	ListSeeds(ctx context.Context) ([]string, error)
	GetSeed(ctx context.Context, seedID string) (*state.Seed, error)
}

type SeedListResponse struct {
	Seeds []string `json:"seeds"`
}

// SeedHandler serves
// GET /v1/seeds      - list seed ids
// GET /v1/seeds/{id} - one seed
type SeedHandler struct {
	seeds  SeedSource
	logger *slog.Logger
}

func NewSeedHandler(seeds SeedSource, logger *slog.Logger) *SeedHandler {
	return &SeedHandler{
		seeds:  seeds,
		logger: logger,
	}
}

func (h *SeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	segments := pathSegments(r.URL.Path, "/v1/seeds")
	switch len(segments) {
	case 0:
		ids, err := h.seeds.ListSeeds(r.Context())
		if err != nil {
			h.logger.Error("Failed to list seeds", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to list seeds")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, SeedListResponse{Seeds: ids})
	case 1:
		seed, err := h.seeds.GetSeed(r.Context(), segments[0])
		if err != nil {
			if errors.Is(err, storage.ErrSeedNotFound) {
				writeError(w, h.logger, http.StatusNotFound, "Seed not found")
				return
			}
			h.logger.Warn("Failed to load seed", "seed_id", segments[0], "error", err)
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, h.logger, http.StatusOK, seed)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

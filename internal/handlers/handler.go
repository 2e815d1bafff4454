package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/broadcast"
	"github.com/eldtechnologies/pixelboard/internal/canvas"
	"github.com/eldtechnologies/pixelboard/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	arbiter  *canvas.Arbiter
	hub      *broadcast.Hub
	grid     store.GridStore
	redis    *store.RedisStore // nil when rate limits are in-memory
	cooldown int64            // ms, reported to clients
	logger   zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(arbiter *canvas.Arbiter, hub *broadcast.Hub, grid store.GridStore, redis *store.RedisStore, cooldownMs int64, logger zerolog.Logger) *Handler {
	return &Handler{
		arbiter:  arbiter,
		hub:      hub,
		grid:     grid,
		redis:    redis,
		cooldown: cooldownMs,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/eldtechnologies/pixelboard/internal/api/middleware"
	"github.com/eldtechnologies/pixelboard/internal/canvas"
	"github.com/eldtechnologies/pixelboard/internal/models"
)

// PlaceResponse is the body of a successful placement.
type PlaceResponse struct {
	OK bool `json:"ok"`
}

// GetPixels returns the full canvas.
func (h *Handler) GetPixels(w http.ResponseWriter, r *http.Request) {
	pixels, err := h.hub.Snapshot(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("snapshot failed")
		h.Error(w, http.StatusInternalServerError, "db")
		return
	}

	h.JSON(w, http.StatusOK, pixels)
}

// Place handles a placement over plain HTTP. Accepted placements are broadcast
// to real-time observers exactly as if they came from a socket.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, canvas.ReasonMalformed)
		return
	}

	req, err := canvas.DecodePlace(body, middleware.RealIP(r))
	if err == nil {
		_, err = h.arbiter.Place(r.Context(), req)
	}

	var rejected *canvas.RejectError
	var cooldown *canvas.CooldownError
	switch {
	case err == nil:
		h.JSON(w, http.StatusOK, PlaceResponse{OK: true})
	case errors.As(err, &rejected):
		h.Error(w, http.StatusBadRequest, rejected.Reason)
	case errors.As(err, &cooldown):
		retry := cooldown.RetryAfter(time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(retry)))
		h.Error(w, http.StatusTooManyRequests, "cooldown")
	default:
		h.Error(w, http.StatusInternalServerError, "db")
	}
}

// GetConfig returns the canvas dimensions and cooldown.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	width, height := h.arbiter.Size()
	h.JSON(w, http.StatusOK, models.CanvasConfig{
		Width:      width,
		Height:     height,
		CooldownMs: h.cooldown,
	})
}

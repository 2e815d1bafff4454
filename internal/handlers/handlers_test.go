package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/pixelboard/internal/broadcast"
	"github.com/eldtechnologies/pixelboard/internal/canvas"
	"github.com/eldtechnologies/pixelboard/internal/models"
	"github.com/eldtechnologies/pixelboard/internal/ratelimit"
	"github.com/eldtechnologies/pixelboard/internal/store/storetest"
)

type testEnv struct {
	h    *Handler
	hub  *broadcast.Hub
	grid *storetest.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	grid := storetest.NewMemoryStore()
	hub := broadcast.NewHub(grid, zerolog.Nop(), 0)
	t.Cleanup(hub.Close)

	arbiter := canvas.NewArbiter(
		canvas.Config{Width: 300, Height: 150},
		grid,
		ratelimit.NewMemoryLimiter(5*time.Second),
		hub,
		zerolog.Nop(),
	)
	return &testEnv{
		h:    NewHandler(arbiter, hub, grid, nil, 5000, zerolog.Nop()),
		hub:  hub,
		grid: grid,
	}
}

func place(h *Handler, remote, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/place", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.Place(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestPlace_AcceptedAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	obs := env.hub.Subscribe("watcher")

	w := place(env.h, "10.0.0.1:5000", `{"x":10,"y":20,"color":"#ff0000"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PlaceResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.OK)

	select {
	case msg := <-obs.Messages():
		var frame models.Envelope
		require.NoError(t, json.Unmarshal(msg, &frame))
		assert.Equal(t, models.TypePixel, frame.Type)
		assert.JSONEq(t, `{"x":10,"y":20,"color":"#ff0000"}`, string(frame.Data))
	case <-time.After(time.Second):
		t.Fatal("no broadcast for HTTP placement")
	}
}

func TestPlace_Cooldown(t *testing.T) {
	env := newTestEnv(t)

	w := place(env.h, "10.0.0.1:5000", `{"x":1,"y":1,"color":"#000000"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = place(env.h, "10.0.0.1:5001", `{"x":2,"y":2,"color":"#000000"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"cooldown"}`, w.Body.String())

	// A different actor is unaffected.
	w = place(env.h, "10.0.0.2:5000", `{"x":2,"y":2,"color":"#000000"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlace_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"x out of range", `{"x":300,"y":0,"color":"#000000"}`, canvas.ReasonInvalidCoords},
		{"negative y", `{"x":0,"y":-1,"color":"#000000"}`, canvas.ReasonInvalidCoords},
		{"fractional x", `{"x":1.5,"y":0,"color":"#000000"}`, canvas.ReasonInvalidCoords},
		{"missing coords", `{"color":"#000000"}`, canvas.ReasonInvalidCoords},
		{"named color", `{"x":0,"y":0,"color":"red"}`, canvas.ReasonInvalidColor},
		{"short hex", `{"x":0,"y":0,"color":"#fff"}`, canvas.ReasonInvalidColor},
		{"malformed json", `{"x":`, canvas.ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := place(env.h, "10.0.0.1:5000", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			decodeBody(t, w, &resp)
			assert.Equal(t, tt.want, resp["error"])
			assert.Zero(t, env.grid.Upserts())
		})
	}
}

func TestPlace_InvalidDoesNotConsumeCooldown(t *testing.T) {
	env := newTestEnv(t)

	w := place(env.h, "10.0.0.1:5000", `{"x":-1,"y":0,"color":"#000000"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = place(env.h, "10.0.0.1:5000", `{"x":0,"y":0,"color":"#000000"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlace_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.grid.SetErr(errors.New("disk full"))

	w := place(env.h, "10.0.0.1:5000", `{"x":0,"y":0,"color":"#000000"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"db"}`, w.Body.String())
}

func TestGetPixels(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, place(env.h, "10.0.0.1:1", `{"x":10,"y":20,"color":"#ff0000"}`).Code)
	require.Equal(t, http.StatusOK, place(env.h, "10.0.0.2:1", `{"x":10,"y":20,"color":"#00FF00"}`).Code)

	w := httptest.NewRecorder()
	env.h.GetPixels(w, httptest.NewRequest(http.MethodGet, "/api/pixels", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pixels []models.PixelUpdate
	decodeBody(t, w, &pixels)
	assert.Equal(t, []models.PixelUpdate{{X: 10, Y: 20, Color: "#00FF00"}}, pixels)
}

func TestGetPixels_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.h.GetPixels(w, httptest.NewRequest(http.MethodGet, "/api/pixels", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetPixels_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.grid.SetErr(errors.New("disk gone"))

	w := httptest.NewRecorder()
	env.h.GetPixels(w, httptest.NewRequest(http.MethodGet, "/api/pixels", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"db"}`, w.Body.String())
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.h.GetConfig(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"width":300,"height":150,"cooldownMs":5000}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.hub.Subscribe("a")

	w := httptest.NewRecorder()
	env.h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Observers)
	assert.Equal(t, "pass", resp.Checks["store"].Status)
	assert.NotContains(t, resp.Checks, "redis")
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.grid.SetErr(errors.New("down"))

	w := httptest.NewRecorder()
	env.h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "fail", resp.Checks["store"].Status)
}

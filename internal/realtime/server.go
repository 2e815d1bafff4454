// Package realtime serves the canvas over WebSocket.
//
// Frames are JSON envelopes {"type": ..., "data": ...}. On connect the server
// sends "config". Clients may send "getPixels", answered with "pixels", and
// "place", answered by a "pixel" broadcast to everyone on success or by
// "placeDenied" to the sender when the cooldown applies. Anything else,
// including malformed frames and invalid placements, is dropped without a reply.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/api/middleware"
	"github.com/eldtechnologies/pixelboard/internal/broadcast"
	"github.com/eldtechnologies/pixelboard/internal/canvas"
	"github.com/eldtechnologies/pixelboard/internal/models"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 4096
	snapshotTimeout = 10 * time.Second
)

// Server upgrades HTTP requests to real-time sessions.
type Server struct {
	arbiter  *canvas.Arbiter
	hub      *broadcast.Hub
	config   models.CanvasConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a real-time server. allowedOrigins may contain "*".
func NewServer(arbiter *canvas.Arbiter, hub *broadcast.Hub, cooldown time.Duration, allowedOrigins []string, logger zerolog.Logger) *Server {
	width, height := arbiter.Size()
	return &Server{
		arbiter: arbiter,
		hub:     hub,
		config: models.CanvasConfig{
			Width:      width,
			Height:     height,
			CooldownMs: cooldown.Milliseconds(),
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeHTTP upgrades the connection and runs the session until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := &session{
		server: s,
		conn:   conn,
		actor:  middleware.RealIP(r),
		logger: s.logger,
	}
	sess.run()
}

type session struct {
	server   *Server
	conn     *websocket.Conn
	actor    string
	observer *broadcast.Observer
	logger   zerolog.Logger
}

func (s *session) run() {
	defer s.conn.Close()

	// config goes out before any broadcast can be queued.
	msg, err := broadcast.Encode(models.TypeConfig, s.server.config)
	if err == nil {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("failed to send config")
		return
	}

	s.observer = s.server.hub.Subscribe(s.actor)
	s.logger = s.logger.With().Str("observer", s.observer.ID).Str("actor", s.actor).Logger()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()

	s.readPump()

	s.server.hub.Unsubscribe(s.observer)
	<-done
}

// readPump handles inbound frames until the connection fails.
func (s *session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}
		s.handle(data)
	}
}

// writePump is the only writer after config has been sent.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.observer.Messages():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one inbound frame. Errors are logged and never reported
// to the client.
func (s *session) handle(data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug().Err(err).Msg("dropping malformed frame")
		return
	}

	switch env.Type {
	case models.TypeGetPixels:
		s.sendSnapshot()
	case models.TypePlace:
		s.place(env.Data)
	default:
		s.logger.Debug().Str("type", env.Type).Msg("dropping unknown frame type")
	}
}

func (s *session) sendSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	err := s.server.hub.Resync(ctx, s.observer)
	switch {
	case err == nil:
	case errors.Is(err, broadcast.ErrQueueFull):
		s.logger.Warn().Msg("observer queue full, dropping snapshot")
	default:
		s.logger.Error().Err(err).Msg("snapshot failed")
	}
}

func (s *session) place(data []byte) {
	req, err := canvas.DecodePlace(data, s.actor)
	if err == nil {
		_, err = s.server.arbiter.Place(context.Background(), req)
	}

	var cooldown *canvas.CooldownError
	switch {
	case err == nil:
		// The broadcast reaches this session too.
	case errors.As(err, &cooldown):
		s.reply(models.TypePlaceDenied, models.PlaceDenied{
			Reason:       "cooldown",
			RetryAfterMs: cooldown.RetryAfter(time.Now()).Milliseconds(),
		})
	case errors.Is(err, canvas.ErrInvalidInput):
		s.logger.Debug().Err(err).Msg("dropping invalid placement")
	default:
		s.logger.Error().Err(err).Msg("placement failed")
	}
}

func (s *session) reply(typ string, data interface{}) {
	msg, err := broadcast.Encode(typ, data)
	if err != nil {
		s.logger.Error().Err(err).Str("type", typ).Msg("failed to encode reply")
		return
	}
	if !s.observer.Send(msg) {
		s.logger.Warn().Str("type", typ).Msg("observer queue full, dropping reply")
	}
}

package pixelboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Frame types exchanged over the real-time connection.
const (
	TypeConfig      = "config"
	TypeGetPixels   = "getPixels"
	TypePixels      = "pixels"
	TypePlace       = "place"
	TypePixel       = "pixel"
	TypePlaceDenied = "placeDenied"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlaceDenied is sent to a client whose placement hit the cooldown.
type PlaceDenied struct {
	Reason       string `json:"reason"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// Event is one decoded server frame. Exactly one payload field is set,
// matching Type. Unknown types carry no payload.
type Event struct {
	Type   string
	Config *CanvasConfig
	Pixels []Pixel
	Pixel  *Pixel
	Denied *PlaceDenied
}

// Conn is a real-time connection to the canvas. Next must be called from one
// goroutine; the send methods may be called from one other goroutine.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens a real-time connection. The first event is always the canvas
// config.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	wsURL, err := websocketURL(c.BaseURL)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return &Conn{ws: ws}, nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// RequestPixels asks for a full snapshot, delivered as a "pixels" event.
func (c *Conn) RequestPixels() error {
	return c.ws.WriteJSON(frame{Type: TypeGetPixels})
}

// Place submits a placement. Success arrives as a "pixel" event; a cooldown
// rejection arrives as "placeDenied". Invalid placements get no reply.
func (c *Conn) Place(x, y int, color string) error {
	data, err := json.Marshal(Pixel{X: x, Y: y, Color: color})
	if err != nil {
		return err
	}
	return c.ws.WriteJSON(frame{Type: TypePlace, Data: data})
}

// Next blocks until the next event arrives.
func (c *Conn) Next() (Event, error) {
	var f frame
	if err := c.ws.ReadJSON(&f); err != nil {
		return Event{}, err
	}

	ev := Event{Type: f.Type}
	var err error
	switch f.Type {
	case TypeConfig:
		ev.Config = &CanvasConfig{}
		err = json.Unmarshal(f.Data, ev.Config)
	case TypePixels:
		err = json.Unmarshal(f.Data, &ev.Pixels)
	case TypePixel:
		ev.Pixel = &Pixel{}
		err = json.Unmarshal(f.Data, ev.Pixel)
	case TypePlaceDenied:
		ev.Denied = &PlaceDenied{}
		err = json.Unmarshal(f.Data, ev.Denied)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s frame: %w", f.Type, err)
	}
	return ev, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// Watch streams events to fn until ctx is done, the connection fails, or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, fn func(Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := c.Dial(ctx)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.ws.Close()
	}()
	defer conn.Close()

	for {
		ev, err := conn.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

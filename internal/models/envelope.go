package models

import "encoding/json"

// Real-time message types.
const (
	TypeConfig      = "config"
	TypeGetPixels   = "getPixels"
	TypePixels      = "pixels"
	TypePlace       = "place"
	TypePixel       = "pixel"
	TypePlaceDenied = "placeDenied"
)

// Envelope is a single real-time frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data into a frame of the given type.
func NewEnvelope(typ string, data interface{}) (Envelope, error) {
	if data == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw}, nil
}

// CanvasConfig describes the canvas to a newly connected client.
type CanvasConfig struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	CooldownMs int64 `json:"cooldownMs"`
}

// PlaceDenied is sent to the sender of a rejected placement.
type PlaceDenied struct {
	Reason       string `json:"reason"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

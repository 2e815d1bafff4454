package models

// PlaceRequest is a proposed write to a single cell.
type PlaceRequest struct {
	X       int
	Y       int
	Color   string
	ActorID string // Rate-limit key, derived from the client's network origin
}

// AcceptedPlacement is a write that passed validation, cooldown and persistence.
type AcceptedPlacement struct {
	ID        string `json:"id"` // ULID
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Color     string `json:"color"`
	Timestamp int64  `json:"ts"` // Unix ms
}

// Update returns the broadcast payload for the placement.
func (p AcceptedPlacement) Update() PixelUpdate {
	return PixelUpdate{X: p.X, Y: p.Y, Color: p.Color}
}

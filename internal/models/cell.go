package models

// Cell is one persisted grid position.
type Cell struct {
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Color        string `json:"color"`         // #RRGGBB, stored as submitted
	LastModified int64  `json:"last_modified"` // Unix ms
}

// PixelUpdate is the client-facing view of a cell.
type PixelUpdate struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// Update returns the client-facing view of the cell.
func (c Cell) Update() PixelUpdate {
	return PixelUpdate{X: c.X, Y: c.Y, Color: c.Color}
}

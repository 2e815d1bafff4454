package store

import (
	"context"
	"errors"

	"github.com/eldtechnologies/pixelboard/internal/models"
)

// ErrStorage wraps every failure reported by a GridStore backend.
var ErrStorage = errors.New("storage failure")

// GridStore defines durable storage for canvas cells.
// Both PostgresStore and SQLiteStore implement this interface.
type GridStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// GetAll returns every persisted cell. Order is unspecified.
	GetAll(ctx context.Context) ([]models.Cell, error)

	// Upsert creates or replaces the cell at (x, y) in a single statement and
	// returns the stored timestamp. The stored timestamp never decreases: a ts
	// older than the current row is raised to it.
	Upsert(ctx context.Context, x, y int, color string, ts int64) (int64, error)
}

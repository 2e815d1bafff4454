package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/pixelboard/internal/metrics"
	"github.com/eldtechnologies/pixelboard/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/pixels.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/pixels.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pixels (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		color TEXT NOT NULL,
		last_modified INTEGER NOT NULL,
		PRIMARY KEY (x, y)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAll returns every persisted cell.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]models.Cell, error) {
	defer observe(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT x, y, color, last_modified FROM pixels`)
	if err != nil {
		return nil, fmt.Errorf("%w: query pixels: %v", ErrStorage, err)
	}
	defer rows.Close()

	cells := make([]models.Cell, 0)
	for rows.Next() {
		var c models.Cell
		if err := rows.Scan(&c.X, &c.Y, &c.Color, &c.LastModified); err != nil {
			return nil, fmt.Errorf("%w: scan pixel: %v", ErrStorage, err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pixels: %v", ErrStorage, err)
	}

	return cells, nil
}

// Upsert creates or replaces the cell at (x, y).
func (s *SQLiteStore) Upsert(ctx context.Context, x, y int, color string, ts int64) (int64, error) {
	defer observe(time.Now())

	var stored int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pixels (x, y, color, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(x, y) DO UPDATE SET
			color = excluded.color,
			last_modified = MAX(pixels.last_modified, excluded.last_modified)
		RETURNING last_modified
	`, x, y, color, ts).Scan(&stored)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert (%d,%d): %v", ErrStorage, x, y, err)
	}
	return stored, nil
}

func observe(start time.Time) {
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
}

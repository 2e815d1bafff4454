package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/pixelboard/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pixels (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			color TEXT NOT NULL,
			last_modified BIGINT NOT NULL,
			PRIMARY KEY (x, y)
		)
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetAll returns every persisted cell.
func (s *PostgresStore) GetAll(ctx context.Context) ([]models.Cell, error) {
	defer observe(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT x, y, color, last_modified FROM pixels`)
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
func (s *PostgresStore) Upsert(ctx context.Context, x, y int, color string, ts int64) (int64, error) {
	defer observe(time.Now())

	var stored int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pixels (x, y, color, last_modified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (x, y) DO UPDATE SET
			color = EXCLUDED.color,
			last_modified = GREATEST(pixels.last_modified, EXCLUDED.last_modified)
		RETURNING last_modified
	`, x, y, color, ts).Scan(&stored)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert (%d,%d): %v", ErrStorage, x, y, err)
	}
	return stored, nil
}

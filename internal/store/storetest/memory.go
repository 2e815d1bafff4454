// Package storetest provides an in-memory GridStore for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eldtechnologies/pixelboard/internal/models"
	"github.com/eldtechnologies/pixelboard/internal/store"
)

type cellKey struct{ x, y int }

// MemoryStore is a GridStore kept in a map. Failures can be injected with
// SetErr. Not durable.
type MemoryStore struct {
	mu      sync.RWMutex
	cells   map[cellKey]models.Cell
	err     error
	upserts int
}

var _ store.GridStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cells: make(map[cellKey]models.Cell)}
}

// SetErr makes every following call fail with err wrapped in store.ErrStorage.
// Pass nil to clear.
func (m *MemoryStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Upserts returns how many successful upserts have been applied.
func (m *MemoryStore) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failure("ping")
}

// GetAll returns cells sorted by (y, x) so tests can compare slices.
func (m *MemoryStore) GetAll(ctx context.Context) ([]models.Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("get all"); err != nil {
		return nil, err
	}

	cells := make([]models.Cell, 0, len(m.cells))
	for _, c := range m.cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, x, y int, color string, ts int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("upsert"); err != nil {
		return 0, err
	}
	key := cellKey{x, y}
	if prev, ok := m.cells[key]; ok && prev.LastModified > ts {
		ts = prev.LastModified
	}
	m.cells[key] = models.Cell{X: x, Y: y, Color: color, LastModified: ts}
	m.upserts++
	return ts, nil
}

func (m *MemoryStore) failure(op string) error {
	if m.err == nil {
		return nil
	}
	if errors.Is(m.err, store.ErrStorage) {
		return m.err
	}
	return fmt.Errorf("%w: %s: %v", store.ErrStorage, op, m.err)
}

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/pixelboard/internal/models"
)

func upsert(t *testing.T, s GridStore, x, y int, color string, ts int64) int64 {
	t.Helper()
	stored, err := s.Upsert(context.Background(), x, y, color, ts)
	require.NoError(t, err)
	return stored
}

func getAll(t *testing.T, s GridStore) []models.Cell {
	t.Helper()
	cells, err := s.GetAll(context.Background())
	require.NoError(t, err)
	return cells
}

// testGridStore runs the behavior every GridStore backend shares. newStore
// must return an empty store.
func testGridStore(t *testing.T, newStore func(t *testing.T) GridStore) {
	t.Run("UpsertAndGetAll", func(t *testing.T) {
		s := newStore(t)
		assert.Empty(t, getAll(t, s))

		assert.Equal(t, int64(1000), upsert(t, s, 10, 20, "#ff0000", 1000))
		assert.Equal(t, []models.Cell{{X: 10, Y: 20, Color: "#ff0000", LastModified: 1000}}, getAll(t, s))
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, 1, 1, "#000000", 1000)
		upsert(t, s, 1, 1, "#ABCDEF", 2000)

		cells := getAll(t, s)
		require.Len(t, cells, 1)
		assert.Equal(t, "#ABCDEF", cells[0].Color, "color is stored as given")
		assert.Equal(t, int64(2000), cells[0].LastModified)
	})

	t.Run("UpsertIdempotent", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, 3, 4, "#123456", 500)
		upsert(t, s, 3, 4, "#123456", 500)

		assert.Equal(t, []models.Cell{{X: 3, Y: 4, Color: "#123456", LastModified: 500}}, getAll(t, s))
	})

	t.Run("TimestampNeverDecreases", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, 2, 2, "#111111", 2000)

		// A clock that stepped back still replaces the color.
		assert.Equal(t, int64(2000), upsert(t, s, 2, 2, "#222222", 1500))
		assert.Equal(t, []models.Cell{{X: 2, Y: 2, Color: "#222222", LastModified: 2000}}, getAll(t, s))

		assert.Equal(t, int64(2500), upsert(t, s, 2, 2, "#333333", 2500))
	})

	t.Run("ConcurrentUpsertSameCell", func(t *testing.T) {
		s := newStore(t)

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Upsert(context.Background(), 0, 0, fmt.Sprintf("#00000%d", i), 100)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		cells := getAll(t, s)
		require.Len(t, cells, 1)
		assert.Regexp(t, `^#00000[0-7]$`, cells[0].Color)
		assert.Equal(t, int64(100), cells[0].LastModified)
	})
}

package canvas

import "sync"

type cellKey struct{ x, y int }

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// cellLocks hands out one mutex per coordinate. Entries exist only while some
// caller holds or waits for them.
type cellLocks struct {
	mu      sync.Mutex
	entries map[cellKey]*lockEntry
}

func newCellLocks() *cellLocks {
	return &cellLocks{entries: make(map[cellKey]*lockEntry)}
}

// lock blocks until the coordinate is free and returns its unlock func.
func (l *cellLocks) lock(x, y int) func() {
	key := cellKey{x, y}

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

func (l *cellLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

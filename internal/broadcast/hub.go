// Package broadcast fans accepted placements out to connected observers and
// serves full-canvas snapshots.
//
// Delivery is best-effort and at most once: every observer owns a bounded FIFO
// queue, and an event that does not fit is dropped for that observer only.
// Observers recover from drops by requesting a snapshot.
//
// While an observer's snapshot is being read, events for it are held back and
// released after the snapshot, minus those the snapshot already supersedes.
// A snapshot therefore never overwrites a newer event for the same cell.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/metrics"
	"github.com/eldtechnologies/pixelboard/internal/models"
	"github.com/eldtechnologies/pixelboard/internal/store"
)

// DefaultQueueSize is the per-observer outbound queue length.
const DefaultQueueSize = 256

// ErrQueueFull is returned when a snapshot does not fit the observer's queue.
var ErrQueueFull = errors.New("observer queue full")

type cellKey struct{ x, y int }

// heldEvent is a pixel frame deferred until the observer's snapshot is queued.
type heldEvent struct {
	cell cellKey
	ts   int64
	msg  []byte
}

// Observer is a handle for one connected client.
type Observer struct {
	ID      string
	ActorID string

	mu        sync.Mutex
	send      chan []byte
	closed    bool
	resyncing bool
	held      []heldEvent
}

// Messages returns the observer's outbound queue. It is closed on unsubscribe.
func (o *Observer) Messages() <-chan []byte {
	return o.send
}

// Send enqueues msg without blocking. It returns false if the queue is full or
// the observer has been unsubscribed.
func (o *Observer) Send(msg []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	select {
	case o.send <- msg:
		return true
	default:
		return false
	}
}

// deliver queues a pixel frame, or holds it while a snapshot is being read.
func (o *Observer) deliver(ev heldEvent) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if o.resyncing {
		if len(o.held) >= cap(o.send) {
			return false
		}
		o.held = append(o.held, ev)
		return true
	}
	select {
	case o.send <- ev.msg:
		return true
	default:
		return false
	}
}

func (o *Observer) beginResync() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resyncing = true
	o.held = nil
}

// endResync queues snapshot, if any, followed by the held events that it does
// not supersede. lastModified maps cells in the snapshot to their timestamps.
func (o *Observer) endResync(snapshot []byte, lastModified map[cellKey]int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	held := o.held
	o.resyncing = false
	o.held = nil
	if o.closed {
		return nil
	}

	var err error
	if snapshot != nil {
		select {
		case o.send <- snapshot:
		default:
			err = ErrQueueFull
			lastModified = nil
		}
	}

	for _, ev := range held {
		if ts, ok := lastModified[ev.cell]; ok && ts > ev.ts {
			continue
		}
		select {
		case o.send <- ev.msg:
		default:
			metrics.BroadcastDropped.Inc()
		}
	}
	return err
}

func (o *Observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.send)
	}
}

// Hub holds the set of active observers.
type Hub struct {
	grid      store.GridStore
	logger    zerolog.Logger
	queueSize int

	mu        sync.RWMutex
	observers map[string]*Observer
}

// NewHub creates a hub that reads snapshots from grid.
func NewHub(grid store.GridStore, logger zerolog.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		grid:      grid,
		logger:    logger.With().Str("component", "broadcast").Logger(),
		queueSize: queueSize,
		observers: make(map[string]*Observer),
	}
}

// Subscribe registers a new observer.
func (h *Hub) Subscribe(actorID string) *Observer {
	o := &Observer{
		ID:      uuid.Must(uuid.NewV7()).String(),
		ActorID: actorID,
		send:    make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	h.observers[o.ID] = o
	count := len(h.observers)
	h.mu.Unlock()

	metrics.Observers.Set(float64(count))
	h.logger.Debug().Str("observer", o.ID).Str("actor", actorID).Int("observers", count).Msg("observer joined")
	return o
}

// Unsubscribe removes the observer and closes its queue. Safe to call twice.
func (h *Hub) Unsubscribe(o *Observer) {
	h.mu.Lock()
	_, ok := h.observers[o.ID]
	delete(h.observers, o.ID)
	count := len(h.observers)
	h.mu.Unlock()

	o.close()

	if ok {
		metrics.Observers.Set(float64(count))
		h.logger.Debug().Str("observer", o.ID).Int("observers", count).Msg("observer left")
	}
}

// Publish delivers an accepted placement to every observer as a pixel frame.
// It never blocks on a slow observer and returns the number of observers the
// frame was queued for.
func (h *Hub) Publish(p models.AcceptedPlacement) int {
	msg, err := Encode(models.TypePixel, p.Update())
	if err != nil {
		h.logger.Error().Err(err).Str("placement", p.ID).Msg("failed to encode pixel frame")
		return 0
	}
	ev := heldEvent{cell: cellKey{p.X, p.Y}, ts: p.Timestamp, msg: msg}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, o := range h.observers {
		if o.deliver(ev) {
			delivered++
			continue
		}
		metrics.BroadcastDropped.Inc()
		h.logger.Warn().Str("observer", o.ID).Str("placement", p.ID).Msg("observer queue full, dropping event")
	}
	return delivered
}

// Snapshot returns the full current canvas, read at call time.
func (h *Hub) Snapshot(ctx context.Context) ([]models.PixelUpdate, error) {
	cells, err := h.grid.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	pixels := make([]models.PixelUpdate, len(cells))
	for i, c := range cells {
		pixels[i] = c.Update()
	}
	return pixels, nil
}

// Resync queues a full-canvas pixels frame for o. Events published while the
// canvas is read are queued after the frame, except those for cells the frame
// already shows at a later timestamp. It returns ErrQueueFull if the frame did
// not fit. Calls for one observer must not overlap.
func (h *Hub) Resync(ctx context.Context, o *Observer) error {
	o.beginResync()

	cells, err := h.grid.GetAll(ctx)
	if err != nil {
		o.endResync(nil, nil)
		return err
	}

	pixels := make([]models.PixelUpdate, len(cells))
	lastModified := make(map[cellKey]int64, len(cells))
	for i, c := range cells {
		pixels[i] = c.Update()
		lastModified[cellKey{c.X, c.Y}] = c.LastModified
	}

	msg, err := Encode(models.TypePixels, pixels)
	if err != nil {
		o.endResync(nil, nil)
		return err
	}
	return o.endResync(msg, lastModified)
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Close unsubscribes every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[string]*Observer)
	h.mu.Unlock()

	for _, o := range observers {
		o.close()
	}
	metrics.Observers.Set(0)
}

// Encode builds a real-time frame.
func Encode(typ string, data interface{}) ([]byte, error) {
	env, err := models.NewEnvelope(typ, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Package canvas arbitrates writes to the shared pixel grid.
//
// Every placement goes through four steps: structural validation, the actor
// cooldown, persistence, and publication. Invalid requests never reach the
// limiter. Denied requests never reach the store. Once the limiter admits a
// request its cooldown slot is spent, even if the store then fails.
//
// Persist and publish for one coordinate run under that coordinate's lock, so
// observers receive updates for a cell in the order the store applied them.
// Writes to different cells proceed independently.
package canvas

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/pixelboard/internal/metrics"
	"github.com/eldtechnologies/pixelboard/internal/models"
	"github.com/eldtechnologies/pixelboard/internal/ratelimit"
	"github.com/eldtechnologies/pixelboard/internal/store"
)

// DefaultWriteTimeout bounds persistence of an admitted write.
const DefaultWriteTimeout = 10 * time.Second

// Publisher receives accepted placements. Publish must not block.
type Publisher interface {
	Publish(p models.AcceptedPlacement) int
}

// Config holds the arbiter's fixed parameters.
type Config struct {
	Width        int
	Height       int
	WriteTimeout time.Duration
	Clock        func() time.Time // defaults to time.Now
}

// Arbiter validates, rate-limits, persists and publishes placements.
type Arbiter struct {
	width        int
	height       int
	writeTimeout time.Duration
	now          func() time.Time

	grid      store.GridStore
	limiter   ratelimit.Limiter
	publisher Publisher
	logger    zerolog.Logger
	locks     *cellLocks
}

// NewArbiter creates an arbiter for a width x height canvas.
func NewArbiter(cfg Config, grid store.GridStore, limiter ratelimit.Limiter, publisher Publisher, logger zerolog.Logger) *Arbiter {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Arbiter{
		width:        cfg.Width,
		height:       cfg.Height,
		writeTimeout: cfg.WriteTimeout,
		now:          cfg.Clock,
		grid:         grid,
		limiter:      limiter,
		publisher:    publisher,
		logger:       logger.With().Str("component", "arbiter").Logger(),
		locks:        newCellLocks(),
	}
}

// Size returns the canvas dimensions.
func (a *Arbiter) Size() (width, height int) {
	return a.width, a.height
}

// Validate checks bounds and color format.
func (a *Arbiter) Validate(req models.PlaceRequest) error {
	if req.X < 0 || req.X >= a.width || req.Y < 0 || req.Y >= a.height {
		return &RejectError{Reason: ReasonInvalidCoords}
	}
	if !ValidColor(req.Color) {
		return &RejectError{Reason: ReasonInvalidColor}
	}
	return nil
}

// Place runs a placement through validation, cooldown, persistence and
// publication. Errors wrap ErrInvalidInput, ErrCooldown or ErrStorageFailure.
//
// Cancelling ctx after admission does not abort the write.
func (a *Arbiter) Place(ctx context.Context, req models.PlaceRequest) (models.AcceptedPlacement, error) {
	p, err := a.place(ctx, req)
	metrics.Placements.WithLabelValues(Outcome(err)).Inc()
	return p, err
}

func (a *Arbiter) place(ctx context.Context, req models.PlaceRequest) (models.AcceptedPlacement, error) {
	if err := a.Validate(req); err != nil {
		return models.AcceptedPlacement{}, err
	}

	decision, err := a.limiter.CheckAndRecord(ctx, req.ActorID, a.now())
	if err != nil {
		a.logger.Error().Err(err).Str("actor", req.ActorID).Msg("rate limiter unavailable")
		return models.AcceptedPlacement{}, fmt.Errorf("%w: rate limiter: %w", ErrStorageFailure, err)
	}
	if !decision.Admitted {
		a.logger.Debug().
			Str("actor", req.ActorID).
			Time("retry_at", decision.RetryAt).
			Msg("placement denied by cooldown")
		return models.AcceptedPlacement{}, &CooldownError{RetryAt: decision.RetryAt}
	}

	// The cooldown slot is spent; finish regardless of the caller.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.writeTimeout)
	defer cancel()

	unlock := a.locks.lock(req.X, req.Y)
	defer unlock()

	ts, err := a.grid.Upsert(wctx, req.X, req.Y, req.Color, a.now().UnixMilli())
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("actor", req.ActorID).
			Int("x", req.X).
			Int("y", req.Y).
			Msg("failed to persist placement")
		return models.AcceptedPlacement{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	placement := models.AcceptedPlacement{
		ID:        ulid.Make().String(),
		X:         req.X,
		Y:         req.Y,
		Color:     req.Color,
		Timestamp: ts,
	}
	delivered := a.publisher.Publish(placement)

	a.logger.Debug().
		Str("placement", placement.ID).
		Str("actor", req.ActorID).
		Int("x", req.X).
		Int("y", req.Y).
		Str("color", req.Color).
		Int("delivered", delivered).
		Msg("placement accepted")

	return placement, nil
}

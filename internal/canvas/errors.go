package canvas

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrCooldown       = errors.New("cooldown")
	ErrStorageFailure = errors.New("storage failure")
)

// Rejection reasons for invalid input. The strings are part of the HTTP API.
const (
	ReasonMalformed     = "invalid JSON body"
	ReasonInvalidCoords = "invalid coords"
	ReasonInvalidColor  = "invalid color"
)

// RejectError reports a placement that failed structural validation.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

func (e *RejectError) Unwrap() error { return ErrInvalidInput }

// CooldownError reports a placement denied by the rate limiter.
type CooldownError struct {
	RetryAt time.Time
}

func (e *CooldownError) Error() string { return "cooldown" }

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// RetryAfter returns the remaining wait relative to now.
func (e *CooldownError) RetryAfter(now time.Time) time.Duration {
	if !e.RetryAt.After(now) {
		return 0
	}
	return e.RetryAt.Sub(now)
}

// Outcome classifies err into a placement result label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	default:
		return "storage"
	}
}

package utils

import (
	"math"
	"time"
)

const (
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultFactor       = 1.8
	DefaultMaxDelay     = 30 * time.Second
)

type ReconnectStrategy interface {
	NextDelay() time.Duration
	Current() time.Duration
	Reset()
}

// ExponentialBackoff grows geometrically per consecutive failure and is
// capped at maxDelay. It is not safe for concurrent use.
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	factor       float64
	failures     int
}

func NewExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoffWith(DefaultInitialDelay, DefaultFactor, DefaultMaxDelay)
}

// NewExponentialBackoffWith falls back to the defaults for any
// non-positive argument and for a factor below 1.
func NewExponentialBackoffWith(initial time.Duration, factor float64, max time.Duration) *ExponentialBackoff {
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if factor < 1 {
		factor = DefaultFactor
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	if max < initial {
		max = initial
	}
	return &ExponentialBackoff{
		initialDelay: initial,
		maxDelay:     max,
		factor:       factor,
	}
}

// NextDelay returns the current delay and advances the state by one
// failed attempt.
func (e *ExponentialBackoff) NextDelay() time.Duration {
	delay := e.Current()
	if delay < e.maxDelay {
		e.failures++
	}
	return delay
}

// Current is min(initial * factor^failures, max).
func (e *ExponentialBackoff) Current() time.Duration {
	d := float64(e.initialDelay) * math.Pow(e.factor, float64(e.failures))
	if math.IsInf(d, 0) || d >= float64(e.maxDelay) {
		return e.maxDelay
	}
	return time.Duration(math.Round(d))
}

func (e *ExponentialBackoff) Reset() {
	e.failures = 0
}

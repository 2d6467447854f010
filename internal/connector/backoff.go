package connector

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 64 * time.Second
)

// Backoff yields reconnect delays: initial, doubled on every consecutive
// failure, capped at the ceiling. Reset goes back to initial after a good open.
// It never gives up.
type Backoff struct {
	exp *backoff.ExponentialBackOff
}

func NewBackoff(initial, ceiling time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if ceiling < initial {
		ceiling = initial
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = ceiling
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &Backoff{exp: exp}
}

func (b *Backoff) Next() time.Duration { return b.exp.NextBackOff() }

func (b *Backoff) Reset() { b.exp.Reset() }

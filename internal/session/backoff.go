package session

import (
	"context"
	"time"
)

const (
	// DefaultBackoffBase is the delay after the first failed connect.
	DefaultBackoffBase = 500 * time.Millisecond
	// DefaultBackoffCeiling caps any single delay.
	DefaultBackoffCeiling = 5 * time.Second
)

// Backoff is an exponential delay schedule between connect attempts.
type Backoff struct {
	Base    time.Duration
	Ceiling time.Duration
}

// DefaultBackoff returns the standard 500ms doubling schedule capped at 5s.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBackoffBase, Ceiling: DefaultBackoffCeiling}
}

// Delay returns the wait between attempt i and attempt i+1 (i starts at 1):
// min(Base * 2^(i-1), Ceiling).
func (b Backoff) Delay(i int) time.Duration {
	if i < 1 {
		i = 1
	}
	d := b.Base
	for n := 1; n < i; n++ {
		d *= 2
		if b.Ceiling > 0 && d >= b.Ceiling {
			return b.Ceiling
		}
	}
	if b.Ceiling > 0 && d > b.Ceiling {
		return b.Ceiling
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package retryutil implements the capped exponential backoff shared by the
// provider kernel's retry loop.
package retryutil

import (
	"context"
	"time"
)

// Backoff computes sleep durations for attempt n as min(cap, base*2^n).
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the kernel's documented cap of 60s.
func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Cap: 60 * time.Second}
}

// Delay returns the sleep duration for the given attempt (0-indexed; attempt
// 0 never sleeps in the kernel's loop, callers sleep before attempts > 0).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// Sleep waits for the attempt's backoff delay or until ctx is cancelled,
// whichever comes first. Returns ctx.Err() if cancelled.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

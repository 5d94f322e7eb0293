package providers

import (
	"context"
	"time"
)

// exhaustedCooldown is how long to wait once every key in the pool has seen
// a rate limit within one cycle.
const exhaustedCooldown = 30 * time.Second

// backoff returns the exponential wait for a retry attempt (1-based).
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

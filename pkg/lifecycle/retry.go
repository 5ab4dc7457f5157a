package lifecycle

import (
	"context"
	"fmt"
	"time"
)

type retryHook struct {
	Hook
	attempts int
	initial  time.Duration
	max      time.Duration
}

// RetryHook wraps h so its body is retried up to attempts times with
// exponential backoff between tries. Name and priority are unchanged.
func RetryHook(h Hook, attempts int, initial, max time.Duration) Hook {
	if attempts < 1 {
		attempts = 1
	}
	return &retryHook{Hook: h, attempts: attempts, initial: initial, max: max}
}

func (r *retryHook) Run(ctx context.Context) error {
	backoff := NewBackoff(r.initial, r.max)
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.Hook.Run(ctx); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		if werr := backoff.Wait(ctx); werr != nil {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", r.attempts, err)
}

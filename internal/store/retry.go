package store

import (
	"context"
	"time"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
)

// withRetry runs op up to retryAttempts times with doubling backoff.
// Context cancellation stops the loop immediately; the last error is
// returned. Model calls are never routed through here — retries apply to
// transient store operations only.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	backoff := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
	return err
}

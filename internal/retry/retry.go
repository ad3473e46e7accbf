// Package retry re-runs operations against dependencies that may still be
// starting, the Postgres pool during deployment first among them.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// PermanentError marks an error Do gives up on immediately, such as bad
// database credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops instead of retrying it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do runs fn up to maxAttempts times, sleeping between attempts with
// exponential backoff from baseDelay plus jitter. It returns nil on the
// first success, the unwrapped error for a PermanentError, the context
// error if ctx ends during a backoff sleep, and otherwise the last
// attempt's error.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if attempt == maxAttempts {
			return err
		}

		timer := time.NewTimer(jittered(baseDelay << (attempt - 1)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// jittered spreads d by +-25% so replicas restarted together do not hit the
// database in lockstep.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := d / 2
	return d - spread/2 + rand.N(spread+1)
}

// Package retry retries an operation with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Settings describe how often and how long to retry.
type Settings struct {
	InitialBackoff time.Duration
	Multiplier     int
	// MaxBackoff caps a single wait. Zero is uncapped.
	MaxBackoff time.Duration
	// MaxAttempts counts the first call. Zero retries until the context is
	// done.
	MaxAttempts int
}

func (s Settings) Verify() error {
	if s.InitialBackoff <= 0 {
		return errors.Newf("initial backoff must be > 0, got %s", s.InitialBackoff)
	}
	if s.Multiplier < 1 {
		return errors.Newf("multiplier must be >= 1, got %d", s.Multiplier)
	}
	if s.MaxBackoff > 0 && s.InitialBackoff > s.MaxBackoff {
		return errors.Newf("initial backoff (%s) must be less than max backoff (%s)", s.InitialBackoff, s.MaxBackoff)
	}
	if s.MaxAttempts < 0 {
		return errors.Newf("max attempts must be >= 0, got %d", s.MaxAttempts)
	}
	return nil
}

// Backoff is the wait after the given failed attempt, counting from 1.
func (s Settings) Backoff(attempt int) time.Duration {
	d := s.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= time.Duration(s.Multiplier)
		if s.MaxBackoff > 0 && d >= s.MaxBackoff {
			return s.MaxBackoff
		}
	}
	return d
}

// Do calls fn until it succeeds, the context is done or the attempts run
// out. The last error of fn is returned.
func (s Settings) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.Verify(); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if s.MaxAttempts > 0 && attempt >= s.MaxAttempts {
			return errors.Wrapf(err, "giving up after %d attempts", attempt)
		}
		t := time.NewTimer(s.Backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.CombineErrors(ctx.Err(), err)
		case <-t.C:
		}
	}
}

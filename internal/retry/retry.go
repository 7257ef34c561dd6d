package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Defaults applied to every remote call.
const (
	ATTEMPTS = 3
	DELAY    = 30 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy - bounded attempts with a constant delay between them
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnRetry is called with the failure and the attempt number that failed,
	// before waiting.
	OnRetry func(err error, attempt int)

	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
}

// Default returns the policy used for every remote call.
func Default() Policy {
	return Policy{MaxAttempts: ATTEMPTS, Delay: DELAY}
}

// Validate checks the policy can run at least once.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return errors.Errorf("retry: negative delay %s", p.Delay)
	}
	return nil
}

// Do runs op until it succeeds or MaxAttempts is reached. The error of the
// final attempt is returned as-is.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Call(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(err, attempt)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			// Cancelled mid-wait: the caller still sees the operation's failure.
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package pipeline

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

// DefaultRetryDelay is the pause between failed attempts.
const DefaultRetryDelay = 60 * time.Second

// ErrStopped is returned by Backoff.Run when its stop channel closes.
const ErrStopped = errors.ConstError("retry stopped")

// Backoff is the retry policy for fetching and validating snapshots. Fatal
// errors end the loop immediately; everything else is retried after Delay.
type Backoff struct {
	Clock clock.Clock
	Delay time.Duration
	// Attempts limits the number of calls; zero or less retries forever.
	Attempts int
	// MaxDelay caps the delay when Jitter is set.
	MaxDelay time.Duration
	// Jitter randomises each delay in [Delay, MaxDelay].
	Jitter bool
}

// Run calls fn until it succeeds, returns a fatal error, runs out of
// attempts or stop is closed. notify, when set, sees every retried failure.
func (b Backoff) Run(stop <-chan struct{}, fn func() error, notify func(err error, attempt int)) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = retry.UnlimitedAttempts
	}
	delay := b.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	args := retry.CallArgs{
		Func:         fn,
		IsFatalError: IsFatal,
		NotifyFunc:   notify,
		Attempts:     attempts,
		Delay:        delay,
		Clock:        b.Clock,
		Stop:         stop,
	}
	if b.Jitter {
		maxDelay := b.MaxDelay
		if maxDelay < delay {
			maxDelay = delay
		}
		args.BackoffFunc = retry.ExpBackoff(delay, maxDelay, 1, true)
	}
	err := retry.Call(args)
	switch {
	case err == nil:
		return nil
	case IsFatal(err):
		return err
	case retry.IsRetryStopped(err):
		return ErrStopped
	default:
		return errors.Annotate(retry.LastError(err), "retries exhausted")
	}
}

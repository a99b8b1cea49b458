// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultRunAttempts is how often a container run is tried when the
	// engine keeps failing with a transient exit code.
	DefaultRunAttempts = 3
	// DefaultRunBackoff is the wait before the first retry; it doubles each time.
	DefaultRunBackoff = 500 * time.Millisecond
)

var errTransientRun = errors.New("transient container run failure")

// RetryWithBackoff retries op up to maxAttempts times with exponential backoff.
// The wait between attempts is abandoned as soon as ctx is done.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			timer := time.NewTimer(baseBackoff * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// RunWithRetry runs opts on engine, retrying while the engine reports a
// transient failure (exit code 125 or 126, or a transient error message).
// Exhausted retries are not an error: the last result is returned as is.
// The error is non-nil only when the engine could not run at all or ctx
// ended the retries.
func RunWithRetry(ctx context.Context, engine Engine, opts RunOptions, maxAttempts int, baseBackoff time.Duration) (*RunResult, error) {
	var result *RunResult
	err := RetryWithBackoff(ctx, maxAttempts, baseBackoff, func(int) (bool, error) {
		res, err := engine.Run(ctx, opts)
		if err != nil {
			return false, err
		}
		result = res
		if res.ExitCode.IsTransient() || IsTransientError(res.Error) {
			return true, errTransientRun
		}
		return false, nil
	})
	if errors.Is(err, errTransientRun) {
		return result, nil
	}
	return result, err
}

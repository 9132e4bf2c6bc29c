// Package retry runs GitHub operations repeatedly while they fail with
// mkerr.RetryableError, bounded by a timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

const loggerName = "retryer"

// DefTimeout is the max. duration an operation is retried.
const DefTimeout = 10 * time.Minute

// Retryer executes a function repeatedly until it was successful, it returned
// a non-retryable error or the timeout expired.
type Retryer struct {
	logger *zap.Logger

	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
}

// New returns a Retryer that gives up after timeout.
// If timeout is <=0, DefTimeout is used.
func New(timeout time.Duration) *Retryer {
	if timeout <= 0 {
		timeout = DefTimeout
	}

	return &Retryer{
		logger:                     zap.L().Named(loggerName),
		defTimeout:                 timeout,
		backoffInitialInterval:     2 * time.Second,
		backoffRandomizationFactor: backoff.DefaultRandomizationFactor,
	}
}

// Run executes fn until it succeeds or returns an error that does not wrap
// mkerr.RetryableError.
// When the timeout expires or ctx is cancelled, the context error is
// returned, wrapping the last error of fn.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	ctx, cancelFn := context.WithTimeout(ctx, r.defTimeout)
	defer cancelFn()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0

	logger := r.logger.With(logF...)

	var tryCnt uint
	var lastErr error
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(
				"giving up retrying operation",
				logfields.Event("operation_retry_aborted"),
				zap.Uint("try_count", tryCnt),
				zap.NamedError("last_error", lastErr),
				zap.Error(ctx.Err()),
			)

			if lastErr != nil {
				return fmt.Errorf("%w, last error: %s", ctx.Err(), lastErr)
			}

			return ctx.Err()

		case <-timer.C:
			tryCnt++

			err := fn(ctx)
			if err == nil {
				if tryCnt > 1 {
					logger.Debug(
						"operation succeeded after retries",
						logfields.Event("operation_succeeded"),
						zap.Uint("try_count", tryCnt),
					)
				}

				return nil
			}

			var retryErr *mkerr.RetryableError
			if !errors.As(err, &retryErr) {
				return err
			}

			lastErr = err

			var retryIn time.Duration
			if retryErr.After.IsZero() {
				retryIn = bo.NextBackOff()
			} else {
				retryIn = time.Until(retryErr.After)
				if minIntv := r.minInterval(); retryIn < minIntv {
					retryIn = minIntv
				}
			}

			if deadline, ok := ctx.Deadline(); ok && time.Now().Add(retryIn).After(deadline) {
				logger.Warn(
					"operation failed, next retry would be after the timeout",
					logfields.Event("operation_retry_timeout"),
					zap.Uint("try_count", tryCnt),
					zap.Error(err),
				)

				return fmt.Errorf("%w, last error: %s", context.DeadlineExceeded, err)
			}

			logger.Info(
				"operation failed, retry scheduled",
				logfields.Event("operation_retry_scheduled"),
				zap.Uint("try_count", tryCnt),
				zap.Duration("retry_in", retryIn),
				zap.Error(err),
			)

			timer.Reset(retryIn)
		}
	}
}

func (r *Retryer) minInterval() time.Duration {
	return time.Duration(float64(r.backoffInitialInterval) * (1 - r.backoffRandomizationFactor))
}

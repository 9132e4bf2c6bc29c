// Package ratelimit provides a fixed-window limiter to pace GitHub API heavy
// operations of periodic runs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const loggerName = "rate_limiter"

// Limiter allows at most MaxPerWindow operations per window.
// When the limit is reached, Wait blocks for the remainder of the window and
// then starts a new one.
// A Limiter is created per run and shared by the components of that run.
type Limiter struct {
	maxPerWindow int
	window       time.Duration

	clk    clock.Clock
	logger *zap.Logger

	lock        sync.Mutex
	windowStart time.Time
	processed   int
}

type Option func(*Limiter)

// WithClock sets the time source, it is used in tests.
func WithClock(clk clock.Clock) Option {
	return func(l *Limiter) {
		l.clk = clk
	}
}

// New returns a Limiter that allows maxPerWindow operations per window.
// If maxPerWindow is <=0 operations are never delayed.
func New(maxPerWindow int, window time.Duration, opts ...Option) *Limiter {
	l := Limiter{
		maxPerWindow: maxPerWindow,
		window:       window,
		clk:          clock.New(),
		logger:       zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&l)
	}

	l.windowStart = l.clk.Now()

	return &l
}

// Wait blocks until the next operation is allowed and accounts it.
// It returns an error when ctx is cancelled while waiting.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.maxPerWindow <= 0 {
		return nil
	}

	for {
		waitFor, processed := l.reserve()
		if waitFor == 0 {
			return nil
		}

		l.logger.Info(
			"rate limit reached, waiting for window reset",
			logfields.Event("rate_limit_reached"),
			zap.Int("processed_in_window", processed),
			zap.Duration("window", l.window),
			zap.Duration("wait", waitFor),
		)

		t := l.clk.Timer(waitFor)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// reserve accounts an operation in the current window and returns 0.
// If the window is exhausted, nothing is accounted and the duration until
// the window ends is returned.
func (l *Limiter) reserve() (waitFor time.Duration, processed int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.clk.Now()
	elapsed := now.Sub(l.windowStart)

	if elapsed >= l.window {
		l.windowStart = now
		l.processed = 0
	}

	if l.processed >= l.maxPerWindow {
		return l.window - elapsed, l.processed
	}

	l.processed++

	return 0, l.processed
}

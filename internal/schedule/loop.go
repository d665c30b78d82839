// Package schedule runs mirror passes on an interval, one at a time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrStop, returned (or wrapped) by a PassFunc, ends the loop. Any other
// error is logged and the loop waits for the next pass.
var ErrStop = errors.New("schedule: stop")

// PassFunc runs one pass. n counts passes from 1.
type PassFunc func(ctx context.Context, n int) error

// Loop runs Pass immediately and then again Interval after each pass ends.
// Passes never overlap. A value on Trigger cuts the current wait short;
// triggers that arrive during a pass are not lost, so a burst of changes
// yields at most one follow-up pass as long as the sender does not block.
type Loop struct {
	Interval time.Duration
	Pass     PassFunc
	// Trigger may be nil.
	Trigger <-chan struct{}
	// Once runs a single pass and returns its error.
	Once   bool
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Run executes passes until ctx is canceled or a pass returns ErrStop.
// Cancellation is observed only between passes; a pass in progress runs to
// completion. Returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for n := 1; ; n++ {
		err := l.Pass(ctx, n)

		if l.Once {
			return err
		}

		if errors.Is(err, ErrStop) {
			return fmt.Errorf("pass %d: %w", n, err)
		}

		if err != nil {
			logger.Error("pass failed", slog.Int("pass", n), slog.String("error", err.Error()))
		}

		if ctx.Err() != nil {
			return nil
		}

		logger.Debug("waiting for next pass", slog.Duration("interval", l.Interval))

		if !l.wait(ctx, clock, logger) {
			return nil
		}
	}
}

// wait sleeps for the interval or until a trigger arrives. It returns false
// when ctx is canceled.
func (l *Loop) wait(ctx context.Context, clock clockwork.Clock, logger *slog.Logger) bool {
	timer := clock.NewTimer(l.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	case <-l.Trigger:
		logger.Info("source changed, starting early pass")
		return true
	}
}

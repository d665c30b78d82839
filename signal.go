package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// stopSignals end the mirror loop.
var stopSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// shutdownContext returns a context that the first stop signal cancels. The
// loop only checks it between passes, so the pass in progress still runs to
// completion. A second signal abandons that pass and exits the process.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, stopLoop := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, stopSignals...)

	go func() {
		defer signal.Stop(sigs)
		awaitStop(parent, sigs, stopLoop, func() { os.Exit(1) }, logger)
	}()

	return ctx
}

// awaitStop turns stop requests into loop actions until parent is done:
// the first calls stopLoop, any later one calls abandon.
func awaitStop(parent context.Context, sigs <-chan os.Signal, stopLoop, abandon func(), logger *slog.Logger) {
	requests := 0

	for {
		select {
		case <-parent.Done():
			return
		case sig := <-sigs:
			requests++

			if requests == 1 {
				logger.Info("stop requested, no new passes will start",
					slog.String("signal", sig.String()))
				stopLoop()

				continue
			}

			logger.Warn("stop requested again, abandoning the running pass",
				slog.String("signal", sig.String()),
				slog.Int("requests", requests))
			abandon()

			return
		}
	}
}

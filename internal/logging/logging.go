// Package logging builds the process logger: a console handler for the
// operator and, when configured, a timestamped file handler that keeps a
// durable record of every pass.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Console formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

const (
	logFilePerm = 0o644
	logDirPerm  = 0o755

	consoleTimeFormat = "15:04:05.000"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Format selects the console encoding. "auto" and "text" both use tint;
	// "auto" enables colour only when the console is a terminal.
	Format string
	// File, when set, receives every record at Info or below regardless of
	// Level, so --quiet silences the console but not the log file.
	File string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// New returns the logger and a close function for the log file. The close
// function is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{consoleHandler(console, opts.Format, opts.Level)}
	closeFn := func() error { return nil }

	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, nil, err
		}

		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{
			Level: min(opts.Level, slog.LevelInfo),
		}))
		closeFn = f.Close
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}

	return slog.New(NewFanout(handlers...)), closeFn, nil
}

func consoleHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatText:
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: consoleTimeFormat, NoColor: true})
	default:
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: consoleTimeFormat,
			NoColor:    !isTerminal(w),
		})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// openLogFile opens path for appending, creating it and its parent directory.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("logging: empty log file path")
	}

	if err := os.MkdirAll(filepath.Dir(path), logDirPerm); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return f, nil
}

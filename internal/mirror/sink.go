package mirror

import (
	"context"
	"log/slog"
)

// Sink receives every Action as soon as it has happened.
type Sink interface {
	Record(ctx context.Context, a Action)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Action)

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, a Action) {
	f(ctx, a)
}

// MultiSink forwards each action to every non-nil sink in order.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, a Action) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, a)
		}
	}
}

// LogSink writes one structured log record per action. The logger's handlers
// decide where records go and how they are timestamped.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, a Action) {
	level := slog.LevelInfo
	msg := ""

	switch a.Kind {
	case DirectoryCreated:
		msg = "directory created"
	case FileCopied:
		msg = "file copied"
	case FileRemoved:
		msg = "file removed"
	case DirectoryRemoved:
		msg = "directory removed"
	case DirectoryRemoveSkipped:
		msg = "directory not removed (not empty)"
		level = slog.LevelWarn
	default:
		msg = a.Kind.String()
	}

	attrs := []slog.Attr{slog.String("path", a.Path), slog.String("target", a.Target)}
	if a.Kind == FileCopied {
		attrs = append(attrs, slog.String("source", a.Source), slog.Int64("size", a.Size))
	}

	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

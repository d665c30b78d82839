package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/foldersync/internal/fingerprint"
	"github.com/tonimelisma/foldersync/internal/mirror"
)

// Validation range constants.
const (
	minChunkBytes       = 512
	maxChunkBytes       = 64 << 20 // 64 MiB
	minDebounce         = 50 * time.Millisecond
	minJournalRetention = 1
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateSync(&cfg.SyncConfig)...)
	errs = append(errs, validateFilter(&cfg.FilterConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateJournal(&cfg.JournalConfig)...)

	return errors.Join(errs...)
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if _, err := ParseInterval(s.Interval); err != nil {
		errs = append(errs, fmt.Errorf("interval: %w", err))
	}

	if _, err := fingerprint.ParseAlgorithm(s.HashAlgorithm); err != nil {
		errs = append(errs, fmt.Errorf("hash_algorithm: %w", err))
	}

	errs = append(errs, validateChunkSize(s.ChunkSize)...)

	d, err := time.ParseDuration(s.Debounce)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("debounce: invalid duration %q: %w", s.Debounce, err))
	case d < minDebounce:
		errs = append(errs, fmt.Errorf("debounce: must be >= %s, got %s", minDebounce, d))
	}

	return errs
}

func validateChunkSize(s string) []error {
	n, err := parseSize(s)
	if err != nil {
		return []error{fmt.Errorf("chunk_size: %w", err)}
	}

	if n < minChunkBytes || n > maxChunkBytes {
		return []error{fmt.Errorf("chunk_size: must be between 512B and 64MiB, got %s", s)}
	}

	return nil
}

func validateFilter(f *FilterConfig) []error {
	err := mirror.FilterOptions{SkipFiles: f.SkipFiles, SkipDirs: f.SkipDirs}.ValidatePatterns()
	if err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if _, err := ParseLevel(l.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel converts a log_level value to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	l, ok := validLogLevels[level]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("must be one of debug, info, warn, error; got %q", level)
	}

	return l, nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateJournal(j *JournalConfig) []error {
	if j.JournalRetentionDays < minJournalRetention {
		return []error{fmt.Errorf("journal_retention_days: must be >= %d, got %d",
			minJournalRetention, j.JournalRetentionDays)}
	}

	return nil
}

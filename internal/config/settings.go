package config

import (
	"log/slog"
	"time"

	"github.com/tonimelisma/foldersync/internal/fingerprint"
	"github.com/tonimelisma/foldersync/internal/mirror"
)

// The accessors below convert validated string fields into typed values.
// They fall back to defaults on unparsable input, which Validate rejects
// before any caller sees it.

// IntervalDuration returns the pause between passes.
func (c *Config) IntervalDuration() time.Duration {
	d, err := ParseInterval(c.Interval)
	if err != nil {
		d, _ = ParseInterval(defaultInterval)
	}

	return d
}

// DebounceDuration returns the quiet period the watcher waits for.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		d, _ = time.ParseDuration(defaultDebounce)
	}

	return d
}

// ChunkBytes returns the read buffer size for hashing and copying.
func (c *Config) ChunkBytes() int {
	n, err := parseSize(c.ChunkSize)
	if err != nil {
		return fingerprint.DefaultChunkSize
	}

	return int(n)
}

// Algorithm returns the configured fingerprint algorithm.
func (c *Config) Algorithm() fingerprint.Algorithm {
	a, err := fingerprint.ParseAlgorithm(c.HashAlgorithm)
	if err != nil {
		return fingerprint.MD5
	}

	return a
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// FilterOptions returns the engine filter built from the filter keys.
func (c *Config) FilterOptions() mirror.FilterOptions {
	return mirror.FilterOptions{
		SkipFiles:    c.SkipFiles,
		SkipDirs:     c.SkipDirs,
		SkipDotfiles: c.SkipDotfiles,
		IgnoreFile:   c.IgnoreFile,
	}
}

// MirrorOptions returns engine options for this configuration.
func (c *Config) MirrorOptions(logger *slog.Logger) mirror.Options {
	return mirror.Options{
		Algorithm:           c.Algorithm(),
		ChunkSize:           c.ChunkBytes(),
		Filter:              c.FilterOptions(),
		PreservePermissions: c.PreservePermissions,
		Logger:              logger,
	}
}

// JournalFile returns the journal database path, defaulting to the data
// directory.
func (c *Config) JournalFile() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}

	return DefaultJournalPath()
}

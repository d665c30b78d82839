package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions: a typo must never silently fall back to a default.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Path = path

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no config file, using defaults", slog.String("path", path))
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// The result is validated again after overrides, since env and flags can
// carry values the file never saw.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, env)
	applyCLI(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger.Debug("configuration resolved",
		slog.String("path", cfg.Path),
		slog.String("interval", cfg.Interval),
		slog.String("hash_algorithm", cfg.HashAlgorithm),
		slog.Bool("watch", cfg.Watch),
	)

	return cfg, nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	if env.LogFile != "" {
		cfg.LogFile = env.LogFile
	}

	if env.Interval != "" {
		cfg.Interval = env.Interval
	}
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.LogFile != nil {
		cfg.LogFile = *cli.LogFile
	}

	if cli.Interval != nil {
		cfg.Interval = *cli.Interval
	}

	if cli.HashAlgorithm != nil {
		cfg.HashAlgorithm = *cli.HashAlgorithm
	}

	if cli.Watch != nil {
		cfg.Watch = *cli.Watch
	}

	if cli.LogLevel != nil {
		cfg.LogLevel = *cli.LogLevel
	}
}

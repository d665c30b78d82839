package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "FOLDERSYNC_CONFIG"
	EnvLogFile  = "FOLDERSYNC_LOG_FILE"
	EnvInterval = "FOLDERSYNC_INTERVAL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // FOLDERSYNC_CONFIG: override config file path
	LogFile    string // FOLDERSYNC_LOG_FILE: log file path
	Interval   string // FOLDERSYNC_INTERVAL: seconds or duration between passes
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		LogFile:    os.Getenv(EnvLogFile),
		Interval:   os.Getenv(EnvInterval),
	}
}

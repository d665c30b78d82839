package config

// Default values for configuration options. These are layer 0 of the
// override chain and let foldersync run without any config file.
const (
	defaultInterval             = "60s"
	defaultHashAlgorithm        = "md5"
	defaultChunkSize            = "64KiB"
	defaultDebounce             = "2s"
	defaultIgnoreFile           = ".foldersyncignore"
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
	defaultJournalRetentionDays = 30
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SyncConfig:    defaultSyncConfig(),
		FilterConfig:  defaultFilterConfig(),
		LoggingConfig: defaultLoggingConfig(),
		JournalConfig: defaultJournalConfig(),
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:            defaultInterval,
		HashAlgorithm:       defaultHashAlgorithm,
		ChunkSize:           defaultChunkSize,
		Debounce:            defaultDebounce,
		PreservePermissions: true,
	}
}

func defaultFilterConfig() FilterConfig {
	return FilterConfig{
		IgnoreFile: defaultIgnoreFile,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultJournalConfig() JournalConfig {
	return JournalConfig{
		JournalEnabled:       true,
		JournalRetentionDays: defaultJournalRetentionDays,
	}
}

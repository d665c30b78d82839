// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for foldersync. Values are layered:
// defaults, then the config file, then environment variables, then CLI flags.
// The file is flat: every key lives at the top level.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// The embedded sections only group fields in Go; in TOML all keys are global.
type Config struct {
	SyncConfig
	FilterConfig
	LoggingConfig
	JournalConfig

	// Path is the file the values were loaded from, empty when only defaults
	// apply.
	Path string `toml:"-"`
}

// SyncConfig controls the pass loop and the change detector.
type SyncConfig struct {
	// Interval is the pause after each pass: bare seconds ("60") or a Go
	// duration ("1m30s").
	Interval            string `toml:"interval"`
	HashAlgorithm       string `toml:"hash_algorithm"`
	ChunkSize           string `toml:"chunk_size"`
	Watch               bool   `toml:"watch"`
	Debounce            string `toml:"debounce"`
	PreservePermissions bool   `toml:"preserve_permissions"`
}

// FilterConfig controls which entries take part in a pass. Patterns are
// matched against names and source-relative paths.
type FilterConfig struct {
	SkipFiles    []string `toml:"skip_files"`
	SkipDirs     []string `toml:"skip_dirs"`
	SkipDotfiles bool     `toml:"skip_dotfiles"`
	IgnoreFile   string   `toml:"ignore_file"`
}

// LoggingConfig controls log output: level, destination file and console
// format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// JournalConfig controls the SQLite pass history.
type JournalConfig struct {
	JournalEnabled       bool   `toml:"journal_enabled"`
	JournalPath          string `toml:"journal_path"`
	JournalRetentionDays int    `toml:"journal_retention_days"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value": --watch=false must beat watch = true
// in the file.
type CLIOverrides struct {
	ConfigPath    string // --config flag (empty = use default)
	LogFile       *string
	Interval      *string
	HashAlgorithm *string
	Watch         *bool
	LogLevel      *string
}

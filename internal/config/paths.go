package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Application directory name used across all platforms.
const appName = "foldersync"

// File and directory names inside the platform directories.
const (
	configFileName  = "config.toml"
	journalFileName = "journal.db"
	lockDirName     = "locks"
)

// dirKind selects one of the two platform directories the tool uses.
type dirKind struct {
	xdgEnv   string   // Linux override variable
	fallback []string // path below $HOME when the variable is unset
}

var (
	configDirKind = dirKind{xdgEnv: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	dataDirKind   = dirKind{xdgEnv: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
)

// appDir resolves kind for goos. macOS keeps config and data together in
// Application Support; Linux honours XDG variables; other platforms use the
// XDG fallback layout under home.
func appDir(kind dirKind, goos, home string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	if goos == "linux" {
		if xdg := os.Getenv(kind.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	return filepath.Join(append(append([]string{home}, kind.fallback...), appName)...)
}

func userAppDir(kind dirKind) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return appDir(kind, runtime.GOOS, home)
}

// DefaultConfigDir returns the platform directory for the config file, or ""
// when the home directory is unknown.
func DefaultConfigDir() string {
	return userAppDir(configDirKind)
}

// DefaultDataDir returns the platform directory for the journal and replica
// locks, or "" when the home directory is unknown.
func DefaultDataDir() string {
	return userAppDir(dataDirKind)
}

// DefaultConfigPath is the config file used when neither FOLDERSYNC_CONFIG
// nor --config names one.
func DefaultConfigPath() string {
	return underDir(DefaultConfigDir(), configFileName)
}

// DefaultJournalPath is the journal database used when journal_path is unset.
func DefaultJournalPath() string {
	return underDir(DefaultDataDir(), journalFileName)
}

// LockDir returns the directory holding per-replica lock files.
func LockDir() string {
	return underDir(DefaultDataDir(), lockDirName)
}

func underDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}

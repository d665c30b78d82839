package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteTemplate when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// configTemplate is the config file written by `config init`. All settings
// are present as commented-out defaults so users can discover every option
// without reading docs.
const configTemplate = `# foldersync configuration
# Uncomment and modify to override defaults. Every key is top-level.

# Pause after each pass: seconds ("60") or a duration ("1m30s")
# interval = "60s"

# Content fingerprint: md5, sha256, quickxor
# hash_algorithm = "md5"

# Read buffer for hashing and copying
# chunk_size = "64KiB"

# Run an early pass when the source changes, after a quiet period
# watch = false
# debounce = "2s"

# Copy source permission bits onto replica files
# preserve_permissions = true

# Glob patterns (doublestar syntax) for names or relative paths to leave alone
# skip_files = []
# skip_dirs = []
# skip_dotfiles = false

# gitignore-style file read from every source directory
# ignore_file = ".foldersyncignore"

# Log verbosity: debug, info, warn, error
# log_level = "info"

# Log file path; every action is also recorded here with a timestamp
# log_file = ""

# Console format: auto, text, json
# log_format = "auto"

# Pass history database
# journal_enabled = true
# journal_path = ""
# journal_retention_days = 30
`

// WriteTemplate creates a commented default config file at path. It refuses
// to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it into place, so a crash never leaves a truncated config.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}

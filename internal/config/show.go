package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// RenderEffective writes the resolved configuration to w as TOML. The output
// is itself a valid config file, so `config show > config.toml` round-trips.
func RenderEffective(cfg *Config, w io.Writer) error {
	source := cfg.Path
	if source == "" {
		source = "built-in defaults"
	}

	if _, err := fmt.Fprintf(w, "# Effective configuration (file: %s)\n\n", source); err != nil {
		return fmt.Errorf("writing config header: %w", err)
	}

	enc := toml.NewEncoder(w)
	enc.Indent = ""

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

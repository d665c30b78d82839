package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_Defaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(DefaultConfig(), &buf))

	out := buf.String()
	assert.Contains(t, out, "# Effective configuration (file: built-in defaults)")
	assert.Contains(t, out, `interval = "60s"`)
	assert.Contains(t, out, `hash_algorithm = "md5"`)
	assert.Contains(t, out, "journal_retention_days = 30")
	assert.NotContains(t, out, "[")
	assert.NotContains(t, out, "Path")
}

func TestRenderEffective_RoundTrips(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Interval = "5m"
	cfg.SkipDirs = []string{"node_modules", "build/**"}
	cfg.Watch = true

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(cfg, &buf))

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)

	loaded.Path = ""
	assert.Equal(t, cfg, loaded)

	var raw map[string]any
	_, err = toml.Decode(buf.String(), &raw)
	require.NoError(t, err)
	assert.Equal(t, "5m", raw["interval"])
}

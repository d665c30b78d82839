package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	t.Parallel()

	_, err := Load(writeTestConfig(t, "unknown_setting = \"value\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "unknown_setting"`)
}

func TestLoad_UnknownKey_Suggestion(t *testing.T) {
	t.Parallel()

	_, err := Load(writeTestConfig(t, "skip_file = [\"*.tmp\"]\nintervall = \"5s\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "skip_files"?`)
	assert.Contains(t, err.Error(), `did you mean "interval"?`)
}

func TestLoad_UnknownKey_KnownKeyInTable(t *testing.T) {
	t.Parallel()

	_, err := Load(writeTestConfig(t, "[logging]\nlog_level = \"debug\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `config key "logging.log_level" must be at the top level`)
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	t.Parallel()

	_, err := Load(writeTestConfig(t, "completely_unrelated_key = true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"skip_file", "skip_files", 1},
		{"intervall", "interval", 1},
		{"hash_algoritm", "hash_algorithm", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "skip_files", closestMatch("skip_file", knownKeysList))
	assert.Equal(t, "skip_dirs", closestMatch("skip_dir", knownKeysList))
	assert.Equal(t, "debounce", closestMatch("debounse", knownKeysList))
	assert.Empty(t, closestMatch("completely_unrelated", knownKeysList))
}

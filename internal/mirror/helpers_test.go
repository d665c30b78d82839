package mirror

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	memSource  = "/data/source"
	memReplica = "/data/replica"
)

// testLogger returns a debug-level logger writing into the test output.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// buildTree populates root from a map of slash-separated relative paths to
// contents. Keys ending in "/" create empty directories.
func buildTree(t *testing.T, fsys afero.Fs, root string, tree map[string]string) {
	t.Helper()

	require.NoError(t, fsys.MkdirAll(root, 0o755))

	for rel, content := range tree {
		full := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(rel, "/")))

		if strings.HasSuffix(rel, "/") {
			require.NoError(t, fsys.MkdirAll(full, 0o755))
			continue
		}

		require.NoError(t, fsys.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fsys, full, []byte(content), 0o644))
	}
}

// readTree is the inverse of buildTree.
func readTree(t *testing.T, fsys afero.Fs, root string) map[string]string {
	t.Helper()

	out := make(map[string]string)

	err := afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		require.NoError(t, relErr)

		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			out[rel+"/"] = ""
			return nil
		}

		data, readErr := afero.ReadFile(fsys, p)
		require.NoError(t, readErr)

		out[rel] = string(data)

		return nil
	})
	require.NoError(t, err)

	return out
}

// summary renders actions as "kind path" strings for compact assertions.
func summary(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind.String()+" "+a.Path)
	}

	return out
}

func newMemEngine(t *testing.T, fsys afero.Fs, filter FilterOptions) *Engine {
	t.Helper()

	return NewEngine(Options{
		Fs:                  fsys,
		Filter:              filter,
		PreservePermissions: true,
		Logger:              testLogger(t),
	})
}

func runPass(t *testing.T, e *Engine, source, replica string) *Result {
	t.Helper()

	res, err := e.Sync(context.Background(), source, replica, nil)
	require.NoError(t, err)

	return res
}

// recordingSink captures actions for ordering assertions.
type recordingSink struct {
	actions []Action
}

func (s *recordingSink) Record(_ context.Context, a Action) {
	s.actions = append(s.actions, a)
}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func logBuffer() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer

	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

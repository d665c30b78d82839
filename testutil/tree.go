// Package testutil provides filesystem tree helpers shared by package tests
// and the binary-level E2E suite. It depends only on stdlib and testify so
// that E2E tests (which cannot import internal/) can use it.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// DirMarker as a WriteTree value creates an empty directory.
const DirMarker = "<dir>"

// WriteTree creates files under root from a map of slash-separated relative
// paths to contents. Parents are created as needed.
func WriteTree(t testing.TB, root string, tree map[string]string) {
	t.Helper()

	for rel, content := range tree {
		p := filepath.Join(root, filepath.FromSlash(rel))

		if content == DirMarker {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}

		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// ReadTree returns every entry under root in the WriteTree format. Root
// itself is not included.
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()

	out, err := TryReadTree(root)
	require.NoError(t, err)

	return out
}

// TryReadTree is ReadTree for callers polling a tree that may be changing.
func TryReadTree(root string) (map[string]string, error) {
	out := map[string]string{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			out[rel] = DirMarker
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		out[rel] = string(data)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// WithoutPrefix drops entries whose path starts with any of the prefixes.
func WithoutPrefix(tree map[string]string, prefixes ...string) map[string]string {
	out := make(map[string]string, len(tree))

	for rel, v := range tree {
		skip := false

		for _, p := range prefixes {
			if strings.HasPrefix(rel, p) {
				skip = true
				break
			}
		}

		if !skip {
			out[rel] = v
		}
	}

	return out
}

// Package fingerprint computes content digests of files and decides whether a
// replica copy of a file is missing or stale relative to its source.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // content identity only, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/tonimelisma/foldersync/pkg/quickxorhash"
)

// DefaultChunkSize is the read buffer used while streaming file content
// through the hash when the caller does not configure one.
const DefaultChunkSize = 64 * 1024

// minChunkSize keeps tiny configured buffers from turning hashing into a
// syscall per byte.
const minChunkSize = 512

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unsupported names.
var ErrUnknownAlgorithm = errors.New("fingerprint: unknown hash algorithm")

// Algorithm names a digest function.
type Algorithm string

// Supported algorithms. MD5 is the default.
const (
	MD5      Algorithm = "md5"
	SHA256   Algorithm = "sha256"
	QuickXor Algorithm = "quickxor"
)

// Algorithms lists every supported algorithm in display order.
var Algorithms = []Algorithm{MD5, SHA256, QuickXor}

// ParseAlgorithm maps a case-insensitive name to an Algorithm. An empty name
// selects MD5.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", MD5:
		return MD5, nil
	case SHA256:
		return SHA256, nil
	case QuickXor, "quickxorhash":
		return QuickXor, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownAlgorithm, name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case QuickXor:
		return quickxorhash.New()
	default:
		return md5.New() //nolint:gosec // see import
	}
}

// Fingerprint is a fixed-size digest of a file's full content, hex encoded.
// Two fingerprints from the same algorithm are equal iff the digests are.
type Fingerprint string

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}

// Compute streams the file at path through the algorithm's hash in chunks of
// chunkSize bytes. Open and mid-stream read failures are returned wrapped.
func Compute(fsys afero.Fs, path string, algo Algorithm, chunkSize int) (Fingerprint, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := algo.newHash()
	buf := make([]byte, normalizeChunkSize(chunkSize))

	if _, err := io.CopyBuffer(hashWriter{h}, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

func normalizeChunkSize(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}

	return max(n, minChunkSize)
}

// hashWriter hides any ReaderFrom on the hash so io.CopyBuffer honours the
// configured buffer.
type hashWriter struct {
	h hash.Hash
}

func (w hashWriter) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

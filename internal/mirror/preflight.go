package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Precondition errors reported before any pass is attempted.
var (
	ErrSameLocation = errors.New("source and replica resolve to the same location")
	// ErrReplicaAsSource guards against swapped arguments by name only. It
	// rejects legitimately named sources too; ErrSameLocation is the real check.
	ErrReplicaAsSource = errors.New("source path looks like a replica; sync must run from source to replica")
	ErrNested          = errors.New("source and replica must not contain one another")
)

// replicaMarker is the basename substring the naming heuristic looks for.
const replicaMarker = "replica"

// CheckRoots validates the operator-supplied roots on the real filesystem:
// the source must be a readable directory, the replica must be a directory or
// not exist yet, the two must not be the same entry (after resolving
// symlinks) or nested in each other, and the source basename must not
// contain "replica".
func CheckRoots(source, replica string) error {
	srcAbs, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	repAbs, err := filepath.Abs(replica)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReplicaUnavailable, err)
	}

	srcInfo, err := os.Stat(srcAbs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, srcAbs)
	}

	repInfo, err := os.Stat(repAbs)

	switch {
	case err == nil:
		if os.SameFile(srcInfo, repInfo) {
			return fmt.Errorf("%w: %s and %s", ErrSameLocation, source, replica)
		}

		if !repInfo.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrReplicaUnavailable, repAbs)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrReplicaUnavailable, err)
	}

	srcReal, err := filepath.EvalSymlinks(srcAbs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	repReal, err := resolveExisting(repAbs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReplicaUnavailable, err)
	}

	if srcReal == repReal {
		return fmt.Errorf("%w: %s and %s", ErrSameLocation, source, replica)
	}

	if within(srcReal, repReal) || within(repReal, srcReal) {
		return fmt.Errorf("%w: %s and %s", ErrNested, srcReal, repReal)
	}

	if LooksLikeReplica(srcAbs) {
		return fmt.Errorf("%w: %s", ErrReplicaAsSource, source)
	}

	return nil
}

// LooksLikeReplica reports whether the basename of path contains "replica",
// compared with Unicode case folding.
func LooksLikeReplica(path string) bool {
	fold := cases.Fold()

	return strings.Contains(fold.String(filepath.Base(path)), replicaMarker)
}

// resolveExisting resolves symlinks in the longest existing prefix of an
// absolute path and re-appends the components that do not exist yet.
func resolveExisting(abs string) (string, error) {
	var missing []string

	cur := abs

	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}

			return resolved, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}

		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// within reports whether child lies strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

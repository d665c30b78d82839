package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// partialSuffix marks in-flight copies. They live next to the destination so
// the final rename never crosses filesystems.
const partialSuffix = ".partial"

// copyFile writes src's bytes to a temporary file beside dst, applies the
// source's modification time (and permission bits when preserve is set), and
// renames the result over dst. Readers never see a half-written file under
// dst's name. Returns the number of bytes copied.
func copyFile(fsys afero.Fs, src, dst string, chunkSize int, preserve bool) (int64, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	tmp, err := afero.TempFile(fsys, filepath.Dir(dst), "."+filepath.Base(dst)+".*"+partialSuffix)
	if err != nil {
		return 0, fmt.Errorf("creating temporary file: %w", err)
	}

	tmpPath := tmp.Name()

	// No defer tmp.Close(): both exit paths close explicitly.
	n, err := io.CopyBuffer(tmp, in, make([]byte, chunkSize))
	if err != nil {
		tmp.Close()
		fsys.Remove(tmpPath)

		return 0, fmt.Errorf("copying %s: %w", src, err)
	}

	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpPath)
		return 0, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := applyMetadata(fsys, tmpPath, info, preserve); err != nil {
		fsys.Remove(tmpPath)
		return 0, err
	}

	if err := fsys.Rename(tmpPath, dst); err != nil {
		fsys.Remove(tmpPath)
		return 0, fmt.Errorf("renaming into place: %w", err)
	}

	return n, nil
}

func applyMetadata(fsys afero.Fs, target string, info os.FileInfo, preserve bool) error {
	perm := os.FileMode(fallbackFilePerm)
	if preserve {
		perm = info.Mode().Perm()
	}

	if err := fsys.Chmod(target, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	mtime := info.ModTime()
	if err := fsys.Chtimes(target, mtime, mtime); err != nil {
		return fmt.Errorf("setting modification time: %w", err)
	}

	return nil
}

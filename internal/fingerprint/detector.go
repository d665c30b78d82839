package fingerprint

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Detector answers whether a replica file needs to be (re)copied from its
// source. It holds no state between calls; fingerprints are never cached.
type Detector struct {
	fs        afero.Fs
	algo      Algorithm
	chunkSize int
}

// NewDetector returns a Detector reading through fsys. A nil fsys means the
// OS filesystem.
func NewDetector(fsys afero.Fs, algo Algorithm, chunkSize int) *Detector {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	if algo == "" {
		algo = MD5
	}

	return &Detector{fs: fsys, algo: algo, chunkSize: chunkSize}
}

// Algorithm reports the digest the detector compares with.
func (d *Detector) Algorithm() Algorithm {
	return d.algo
}

// Fingerprint computes the fingerprint of path with the detector's settings.
func (d *Detector) Fingerprint(path string) (Fingerprint, error) {
	return Compute(d.fs, path, d.algo, d.chunkSize)
}

// NeedsCopy reports true when replicaFile does not exist, or when its content
// fingerprint differs from sourceFile's. Modification times are not consulted.
func (d *Detector) NeedsCopy(sourceFile, replicaFile string) (bool, error) {
	if _, err := d.fs.Stat(replicaFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}

		return false, fmt.Errorf("stat %s: %w", replicaFile, err)
	}

	src, err := d.Fingerprint(sourceFile)
	if err != nil {
		return false, err
	}

	dst, err := d.Fingerprint(replicaFile)
	if err != nil {
		return false, err
	}

	return src != dst, nil
}

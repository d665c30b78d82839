package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFilePermissions = 0o644
	lockDirPermissions  = 0o755
)

var errReplicaLocked = errors.New("another foldersync is already writing to this replica")

// replicaLockPath names the lock file for a replica. The name is a digest of
// the resolved path, so every spelling of the same directory maps to one
// lock.
func replicaLockPath(lockDir, replica string) string {
	key := replica
	if resolved, err := filepath.EvalSymlinks(replica); err == nil {
		key = resolved
	}

	sum := sha256.Sum256([]byte(filepath.Clean(key)))

	return filepath.Join(lockDir, hex.EncodeToString(sum[:])+".lock")
}

// acquireReplicaLock takes an exclusive, non-blocking lock for replica and
// writes the current PID into the lock file. The returned release function
// unlocks it. The file itself is left in place: removing it would let a
// later process lock a fresh inode while another still holds the old one.
func acquireReplicaLock(lockDir, replica string) (release func(), err error) {
	if lockDir == "" {
		return nil, errors.New("lock directory is empty: cannot determine data directory")
	}

	if err := os.MkdirAll(lockDir, lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := replicaLockPath(lockDir, replica)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if !locked {
		if pid, pidErr := readLockPID(path); pidErr == nil {
			return nil, fmt.Errorf("%w (PID %d, lock %s)", errReplicaLocked, pid, path)
		}

		return nil, fmt.Errorf("%w (lock %s)", errReplicaLocked, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), lockFilePermissions); err != nil {
		fl.Unlock()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return func() {
		fl.Unlock()
	}, nil
}

// readLockPID reads the PID recorded by the lock holder.
func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}

package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// lockFileExtension is the file extension for run locks.
const lockFileExtension = ".lock"

// RunLock is an exclusive per-batch lock preventing two run instances from
// writing the same checkpoint. It is held for the duration of a run and
// must be released on every exit path.
type RunLock struct {
	path string
}

// AcquireLock takes the exclusive lock for batchName under the state
// directory. If another instance already holds it, ErrAlreadyRunning is
// returned before any state is touched.
func AcquireLock(directory, batchName string) (*RunLock, error) {
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("%w: failed to create state directory: %v", ErrPersistence, err)
	}

	path := filepath.Join(directory, sanitizeName(batchName)+lockFileExtension)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: batch %q (lock file %s)", ErrAlreadyRunning, batchName, path)
		}
		return nil, fmt.Errorf("%w: failed to create lock file: %v", ErrPersistence, err)
	}

	// Record the owning pid for operator diagnostics.
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: failed to write lock file: %v", ErrPersistence, err)
	}

	return &RunLock{path: path}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *RunLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to remove lock file: %v", ErrPersistence, err)
	}
	return nil
}

package checkpoint

// DirLocker issues per-batch run locks inside a state directory.
type DirLocker struct {
	Directory string
}

// Acquire takes the run lock for batchName and returns its release
// function. Fails with ErrAlreadyRunning when the lock is held.
func (l DirLocker) Acquire(batchName string) (func() error, error) {
	lock, err := AcquireLock(l.Directory, batchName)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

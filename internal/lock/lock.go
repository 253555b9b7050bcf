// Package lock provides file-based mutual exclusion between concurrent
// invocations of the tool on the same project.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrLocked means another process holds the project lock.
var ErrLocked = errors.New("project is locked by another process")

// Lock is an exclusive lock backed by a lock file in the metadata directory.
// The whole command runs under one acquisition; there is no finer-grained
// locking inside the core.
type Lock struct {
	path string
}

// New creates a lock handle for the given lock file path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire creates the lock file exclusively. If the file already exists the
// lock is held elsewhere and ErrLocked is returned; the caller decides
// whether to surface or retry.
func (l *Lock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w (lock file: %s)", ErrLocked, l.path)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	// Record the owner pid to help a human diagnose a stale lock.
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	return f.Close()
}

// Release removes the lock file. Releasing a lock that is not held is not an
// error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

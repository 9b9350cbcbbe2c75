package archive

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is the flock file inside the data directory.
const lockFileName = ".lock"

// ErrLocked is returned by Open when another process holds the data directory.
var ErrLocked = stderrors.New("data directory is in use by another docarchive process")

// dirLock is an exclusive, non-blocking lock on a data directory.
type dirLock struct {
	flock  *flock.Flock
	locked bool
}

func lockDir(dir string) (*dirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	l := &dirLock{flock: flock.New(filepath.Join(dir, lockFileName))}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	l.locked = true
	return l, nil
}

// Unlock releases the lock. Calling it twice is a no-op.
func (l *dirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release data directory lock: %w", err)
	}
	return nil
}

// IsLocked reports whether another process holds dir. A missing directory
// is not locked.
func IsLocked(dir string) (bool, error) {
	path := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	f := flock.New(path)
	acquired, err := f.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to probe data directory lock: %w", err)
	}
	if acquired {
		_ = f.Unlock()
	}
	return !acquired, nil
}

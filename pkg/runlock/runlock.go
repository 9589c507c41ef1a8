// Package runlock keeps two sync runs from working on the same platform at
// the same time.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another sync run holds the lock")

// Lock is an acquired file lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without waiting. It returns ErrLocked when
// another process holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks. It is safe to call more than once.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

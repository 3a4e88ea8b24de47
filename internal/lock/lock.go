// Package lock serializes syncs against the same project on one machine.
//
// Two syncs racing on a project can both miss a case in their index and both
// create it. The lock is advisory and per host; it does not coordinate CI
// runners on different machines.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 100 * time.Millisecond

// ErrLocked means another process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// Path is the lock file for project under dir.
func Path(dir, project string) string {
	return filepath.Join(dir, "casesync-"+project+".lock")
}

// Lock is a held project lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock at path, waiting up to wait for a current
// holder to release it. A non-positive wait tries once. It returns ErrLocked
// if the lock is still held when the wait runs out.
func Acquire(ctx context.Context, path string, wait time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)

	if wait <= 0 {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return &Lock{fl: fl}, nil
	}

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := fl.TryLockContext(wctx, retryDelay)
	if ok {
		return &Lock{fl: fl}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return nil, fmt.Errorf("%s after %s: %w", path, wait, ErrLocked)
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Release unlocks. The lock file is left in place.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

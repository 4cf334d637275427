package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chansync/internal/domain/consts"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when the catalog lock cannot be acquired in time.
var ErrLockTimeout = errors.New("timed out acquiring catalog lock")

// Lock serializes catalog read-modify-write cycles across goroutines and processes.
//
// Every catalog in an install shares one lock file.
type Lock struct {
	path    string
	timeout time.Duration
	sem     chan struct{}
}

// NewLock returns a lock over path. A non-positive timeout uses the default.
func NewLock(path string, timeout time.Duration) *Lock {
	if timeout <= 0 {
		timeout = consts.CatalogLockTimeout
	}
	return &Lock{
		path:    path,
		timeout: timeout,
		sem:     make(chan struct{}, 1),
	}
}

// DefaultLockPath returns the per-install lock file location.
func DefaultLockPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, consts.DataDirName, consts.CatalogLockName), nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the lock is held, the timeout expires or ctx is done.
func (l *Lock) Acquire(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
	case <-waitCtx.Done():
		return nil, l.waitErr(ctx)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		<-l.sem
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	fl := flock.New(l.path)
	locked, err := fl.TryLockContext(waitCtx, consts.LockRetryInterval)
	if err != nil || !locked {
		<-l.sem
		if waitCtx.Err() != nil {
			return nil, l.waitErr(ctx)
		}
		return nil, fmt.Errorf("failed to lock %q: %w", l.path, err)
	}

	return func() {
		_ = fl.Unlock()
		<-l.sem
	}, nil
}

func (l *Lock) waitErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %v: %s", ErrLockTimeout, l.timeout, l.path)
}

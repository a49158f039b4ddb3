package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrSnapshotLocked is returned when another process holds the snapshot lock.
var ErrSnapshotLocked = errors.New("index snapshot is in use by another process")

const snapshotLockRetry = 100 * time.Millisecond

// SnapshotLock is an exclusive advisory lock on a memory index snapshot.
// It is held from load to save so concurrent processes cannot overwrite
// each other's points.
type SnapshotLock struct {
	lock *flock.Flock
}

// LockSnapshot takes the lock file next to the snapshot at path, waiting up
// to wait for a concurrent holder to release it.
func LockSnapshot(ctx context.Context, path string, wait time.Duration) (*SnapshotLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, snapshotLockRetry)
	if ok {
		return &SnapshotLock{lock: lock}, nil
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	return nil, fmt.Errorf("%w: %s", ErrSnapshotLocked, path)
}

// Unlock releases the lock. It is safe to call on a nil lock.
func (l *SnapshotLock) Unlock() error {
	if l == nil {
		return nil
	}
	return l.lock.Unlock()
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes operations on one session across server
// replicas. The key is the session id; the lock expires after ttl even if
// the holder never unlocks.
type DistributedLocker interface {
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

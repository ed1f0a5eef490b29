package syncer

import "context"

// SyncLock serializes sync passes. A single instance is shared by every
// orchestrator of the process. The zero value is not usable; use NewSyncLock.
type SyncLock struct {
	ch chan struct{}
}

func NewSyncLock() *SyncLock {
	return &SyncLock{ch: make(chan struct{}, 1)}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *SyncLock) Lock(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the lock only if it is free.
func (l *SyncLock) TryLock() bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the lock. Unlocking a free lock panics.
func (l *SyncLock) Unlock() {
	select {
	case <-l.ch:
	default:
		panic("syncer: unlock of unlocked SyncLock")
	}
}

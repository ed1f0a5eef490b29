package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLock(t *testing.T) {
	l := NewSyncLock()
	require.True(t, l.TryLock())
	assert.False(t, l.TryLock())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Lock(ctx), context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		_ = l.Lock(context.Background())
		close(acquired)
	}()
	l.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter did not acquire the released lock")
	}
	l.Unlock()
}

func TestSyncLock_UnlockOfFreeLockPanics(t *testing.T) {
	assert.Panics(t, func() { NewSyncLock().Unlock() })
}

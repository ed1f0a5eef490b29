package models

import (
	"fmt"

	"github.com/dmitrijs2005/autoledger/internal/common"
)

// SyncState is the synchronization state of an expense record.
//
//	SYNCED <-> PENDING_* (local mutation)
//	PENDING_* -> SYNCED | SYNC_ERROR | CONFLICT (queue drain)
//	CONFLICT -> PENDING_* | SYNCED (external resolution only)
type SyncState string

const (
	StateSynced        SyncState = "SYNCED"
	StatePendingCreate SyncState = "PENDING_CREATE"
	StatePendingUpdate SyncState = "PENDING_UPDATE"
	StatePendingDelete SyncState = "PENDING_DELETE"
	StateSyncError     SyncState = "SYNC_ERROR"
	StateConflict      SyncState = "CONFLICT"
)

func ParseSyncState(s string) (SyncState, error) {
	st := SyncState(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidState, s)
	}
	return st, nil
}

func (s SyncState) Valid() bool {
	switch s {
	case StateSynced, StatePendingCreate, StatePendingUpdate, StatePendingDelete, StateSyncError, StateConflict:
		return true
	default:
		return false
	}
}

// IsPending reports whether a local intent is waiting in the queue.
func (s SyncState) IsPending() bool {
	switch s {
	case StatePendingCreate, StatePendingUpdate, StatePendingDelete:
		return true
	case StateSynced, StateSyncError, StateConflict:
		return false
	default:
		return false
	}
}

func (s SyncState) String() string { return string(s) }

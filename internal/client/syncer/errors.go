package syncer

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned by TrySyncServer when another pass holds the lock.
var ErrSyncInProgress = errors.New("sync already in progress")

// ConflictError describes a queued edit that was based on a remote state
// that no longer holds. It is never retried: the conflict is recorded in the
// conflict log and the record is flipped to CONFLICT. It is logged, not
// returned from a pass.
type ConflictError struct {
	LocalID  int64
	Op       string
	Reason   string
	RemoteID *int64
}

func (e *ConflictError) Error() string {
	if e.RemoteID != nil {
		return fmt.Sprintf("%s of expense %d conflicts with remote record %d: %s", e.Op, e.LocalID, *e.RemoteID, e.Reason)
	}
	return fmt.Sprintf("%s of expense %d conflicts with remote state: %s", e.Op, e.LocalID, e.Reason)
}

// ExhaustedError reports operations that reached the attempt ceiling. They
// stay queued but are skipped until their attempts are reset.
type ExhaustedError struct {
	Ops []ExhaustedOp
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%d operation(s) exhausted their attempts", len(e.Ops))
}

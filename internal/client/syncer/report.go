package syncer

import "time"

// ExhaustedOp is a queued operation that reached the attempt ceiling.
type ExhaustedOp struct {
	OperationID string
	LocalID     int64
	VehicleID   int64
	Attempts    int
	LastError   string
}

// Report summarizes one sync pass. Counters cover work done before an
// aborting error too.
type Report struct {
	ServerID   string
	StartedAt  time.Time
	FinishedAt time.Time

	Vehicles        []int64
	SkippedVehicles []int64
	VehicleCacheHit bool

	// queue drain
	Created   int
	Updated   int
	Deleted   int
	Discarded int
	Rewritten int
	Conflicts int
	Exhausted []ExhaustedOp

	// reconciliation
	Merged         int
	Linked         int
	Inserted       int
	RemovedLocally int
	ClearedErrors  int64
}

// Err returns an *ExhaustedError when any operation hit the attempt ceiling.
func (r *Report) Err() error {
	if r == nil || len(r.Exhausted) == 0 {
		return nil
	}
	return &ExhaustedError{Ops: r.Exhausted}
}

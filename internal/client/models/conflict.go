package models

import (
	"encoding/json"
	"time"
)

// Conflict records a mismatch between the state a local edit assumed and
// the remote's actual state. RemoteSnapshot is nil when the remote record
// vanished.
type Conflict struct {
	ID             string
	ServerID       string
	VehicleID      int64
	LocalID        int64
	RemoteSnapshot json.RawMessage
	LocalSnapshot  json.RawMessage
	Reason         string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// ReasonChangedOnServer covers both a changed and a vanished base record;
// the latter carries no RemoteSnapshot.
const ReasonChangedOnServer = "changed on server before sync"

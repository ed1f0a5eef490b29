package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/common"
)

// OperationKind is the intent of a queued operation.
type OperationKind string

const (
	OpCreate OperationKind = "CREATE"
	OpUpdate OperationKind = "UPDATE"
	OpDelete OperationKind = "DELETE"
)

func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidOperation, s)
	}
}

func (k OperationKind) String() string { return string(k) }

// OperationPayload is the base an UPDATE or DELETE was made against. It is
// compared with the current remote snapshot before the intent is applied.
type OperationPayload struct {
	BaseRemoteID    *int64  `json:"baseRemoteId"`
	BaseType        *Kind   `json:"baseType"`
	BaseFingerprint *string `json:"baseFingerprint"`
}

// HasBase reports whether the payload points at a remote record.
func (p OperationPayload) HasBase() bool {
	return p.BaseRemoteID != nil && p.BaseType != nil
}

// BaseFromExpense captures e's last confirmed remote lineage as an operation
// base. A record that was created remotely but not yet relinked has a
// fingerprint and kind but no remote id.
func BaseFromExpense(e *Expense) OperationPayload {
	var p OperationPayload
	if e.RemoteID == nil && e.Fingerprint == "" {
		return p
	}
	k := e.Kind
	p.BaseType = &k
	if e.RemoteID != nil {
		id := *e.RemoteID
		p.BaseRemoteID = &id
	}
	if e.Fingerprint != "" {
		fp := e.Fingerprint
		p.BaseFingerprint = &fp
	}
	return p
}

// Operation is a durable, not yet applied local intent.
type Operation struct {
	ID        string
	ServerID  string
	VehicleID int64
	LocalID   int64
	Kind      OperationKind
	Payload   OperationPayload
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// Package common defines sentinel errors shared by the local store, the
// remote gateway and the sync engine. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors raised before anything is written.
	ErrInvalidKind      = errors.New("invalid expense kind")
	ErrInvalidState     = errors.New("invalid sync state")
	ErrInvalidOperation = errors.New("invalid operation kind")
	ErrInvalidFields    = errors.New("invalid expense fields")

	// Flow-control errors.
	ErrRecordDeleted    = errors.New("record is deleted")
	ErrRecordInConflict = errors.New("record is in conflict")
	ErrAlreadyResolved  = errors.New("conflict already resolved")
)

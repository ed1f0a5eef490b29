package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used locally and on the wire.
const DateLayout = "2006-01-02"

// ExpenseFields are the user-editable business fields of an expense.
// Liters, FillToFull and MissedFill apply to FUEL only; Recurring to TAX only.
type ExpenseFields struct {
	Date        time.Time
	Cost        decimal.Decimal
	Odometer    *int64
	Description string
	Notes       string
	Liters      decimal.NullDecimal
	FillToFull  *bool
	MissedFill  *bool
	Recurring   *bool
}

// Expense is one locally stored expense record.
type Expense struct {
	LocalID   int64
	ServerID  string
	RemoteID  *int64
	VehicleID int64
	Kind      Kind
	ExpenseFields

	State       SyncState
	Deleted     bool
	Fingerprint string
	LastError   string
	UpdatedAt   time.Time
}

// Linked reports whether the record is tied to a remote record id.
func (e *Expense) Linked() bool { return e.RemoteID != nil }

// RemoteExpense is the server's current view of one record, fetched fresh
// for a single sync pass and never persisted as such.
type RemoteExpense struct {
	VehicleID int64
	RemoteID  int64
	Kind      Kind
	ExpenseFields
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

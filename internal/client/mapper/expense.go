package mapper

import (
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

// ApplyRemote overwrites the business fields of e with the snapshot and links
// it to the snapshot's remote id. Sync state is left to the caller.
func ApplyRemote(e *models.Expense, r models.RemoteExpense) {
	id := r.RemoteID
	e.RemoteID = &id
	e.Kind = r.Kind
	e.VehicleID = r.VehicleID
	e.ExpenseFields = Normalize(r.Kind, r.ExpenseFields)
	e.Fingerprint = RemoteFingerprint(r)
}

// NewFromRemote builds a SYNCED local record sourced from a snapshot.
func NewFromRemote(serverID string, r models.RemoteExpense, now time.Time) *models.Expense {
	e := &models.Expense{
		ServerID:  serverID,
		State:     models.StateSynced,
		UpdatedAt: now,
	}
	ApplyRemote(e, r)
	return e
}

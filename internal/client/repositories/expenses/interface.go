package expenses

import (
	"context"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

// Repository describes the record store.
type Repository interface {
	// Insert stores e and sets e.LocalID.
	Insert(ctx context.Context, e *models.Expense) error

	// Update rewrites every mutable column of the row identified by e.LocalID.
	Update(ctx context.Context, e *models.Expense) error

	// GetByLocalID returns the row, tombstones included, or common.ErrNotFound.
	GetByLocalID(ctx context.Context, localID int64) (*models.Expense, error)

	// ListVisible returns non-deleted rows ordered by date desc, odometer desc,
	// then insertion order.
	ListVisible(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error)

	// ListForVehicle returns every row of the vehicle, tombstones included,
	// in insertion order.
	ListForVehicle(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error)

	SetState(ctx context.Context, localID int64, state models.SyncState, lastError string) error

	// MarkSynced sets SYNCED, the remote link and the confirmed fingerprint,
	// and clears the last error.
	MarkSynced(ctx context.Context, localID int64, remoteID *int64, fingerprint string) error

	// Detach clears the remote link.
	Detach(ctx context.Context, localID int64) error

	HardDelete(ctx context.Context, localID int64) error
	SoftDelete(ctx context.Context, localID int64, at time.Time) error

	// ClearStaleErrors resets SYNC_ERROR rows of the vehicle to SYNCED unless
	// they still have queued operations or an unresolved conflict. It returns
	// the number of rows reset.
	ClearStaleErrors(ctx context.Context, serverID string, vehicleID int64) (int64, error)
}

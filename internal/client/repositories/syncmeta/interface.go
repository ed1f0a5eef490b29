// Package syncmeta records when each (server, vehicle) pair last finished a
// full reconciliation. It is written by the sync engine and read only for
// observability.
package syncmeta

import (
	"context"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, serverID string, vehicleID int64, at time.Time) error
	// Get returns common.ErrNotFound when the pair was never synced.
	Get(ctx context.Context, serverID string, vehicleID int64) (*models.SyncMeta, error)
	List(ctx context.Context, serverID string) ([]*models.SyncMeta, error)
}

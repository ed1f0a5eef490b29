// Package vehicles caches the remote vehicle list so a sync pass can still
// find its scope when the vehicle endpoint is unreachable.
package vehicles

import (
	"context"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, v *models.Vehicle) error
	List(ctx context.Context, serverID string) ([]*models.Vehicle, error)
	ListIDs(ctx context.Context, serverID string) ([]int64, error)
}

// Package conflicts is the durable log of unresolved discrepancies between
// a local edit and the remote state it was based on.
package conflicts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

type Repository interface {
	// Create stores c, assigning an ID when it is empty. Flipping the record
	// to CONFLICT is the caller's job and must happen in the same transaction.
	Create(ctx context.Context, c *models.Conflict) error

	// ListUnresolved returns unresolved conflicts of the server, oldest first.
	ListUnresolved(ctx context.Context, serverID string) ([]*models.Conflict, error)

	// Get returns the conflict or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Conflict, error)

	HasUnresolvedForRecord(ctx context.Context, localID int64) (bool, error)

	// MarkResolved stamps the conflict; resolving twice is an error.
	MarkResolved(ctx context.Context, id string, at time.Time) error
}

// Package operations is the durable queue of not yet applied local intents.
// Operations of one record are returned in creation order; ties are broken
// by insertion order.
package operations

import (
	"context"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

type Repository interface {
	// Enqueue stores op, assigning an ID when it is empty.
	Enqueue(ctx context.Context, op *models.Operation) error

	ListPending(ctx context.Context, serverID string, vehicleID int64) ([]*models.Operation, error)
	ListPendingForServer(ctx context.Context, serverID string) ([]*models.Operation, error)

	// LatestForRecord returns the newest operation of the record, or
	// common.ErrNotFound.
	LatestForRecord(ctx context.Context, localID int64) (*models.Operation, error)

	Delete(ctx context.Context, id string) error
	DeleteAllForRecord(ctx context.Context, localID int64) error

	// MarkFailed increments the attempt count and records the error.
	MarkFailed(ctx context.Context, id string, lastError string) error

	// Rewrite changes the kind and payload of an operation in place, keeping
	// its position in the queue.
	Rewrite(ctx context.Context, op *models.Operation) error

	// ResetAttempts zeroes attempt counters of every operation of the server
	// and returns how many operations were reset.
	ResetAttempts(ctx context.Context, serverID string) (int64, error)

	// VehicleIDs returns the distinct vehicles referenced by queued operations.
	VehicleIDs(ctx context.Context, serverID string) ([]int64, error)
}

// Package remote is the boundary to the authoritative expense server.
//
// Gateway is the contract the sync engine depends on. HTTPGateway is the
// concrete adapter for the server's REST-like API; FetchAll fans out one
// fetch per kind concurrently and fails as a whole when any kind fails.
//
// The remote has no in-place update primitive, so callers model an update as
// a delete followed by a create.
package remote

import (
	"context"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
)

// Gateway is the per-server remote contract.
type Gateway interface {
	FetchVehicles(ctx context.Context) ([]models.Vehicle, error)
	Fetch(ctx context.Context, kind models.Kind, vehicleID int64) ([]models.RemoteExpense, error)
	// Create does not return the new record id; the record is relinked by
	// fingerprint on the next fetch.
	Create(ctx context.Context, kind models.Kind, vehicleID int64, fields models.ExpenseFields) error
	// Delete reports a missing record as an error matching IsNotFound.
	Delete(ctx context.Context, kind models.Kind, remoteID int64) error
}

// Factory builds a Gateway for one server profile.
type Factory func(creds models.Credentials) Gateway

package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"golang.org/x/sync/errgroup"
)

// KindFailure is the failure of one kind's fetch inside FetchAll.
type KindFailure struct {
	Kind models.Kind
	Err  error
}

// FetchError aggregates every failing kind of a FetchAll call.
type FetchError struct {
	VehicleID int64
	Failures  []KindFailure
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Kind, f.Err))
	}
	return fmt.Sprintf("fetch vehicle %d failed: %s", e.VehicleID, strings.Join(parts, "; "))
}

// Unwrap exposes the per-kind errors to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FetchAll fetches every kind of the vehicle concurrently. Every fetch runs to
// completion; if any fails the call fails with a *FetchError naming each
// failing kind. Results are returned in models.AllKinds order.
func FetchAll(ctx context.Context, gw Gateway, vehicleID int64) ([]models.RemoteExpense, error) {
	kinds := models.AllKinds()
	results := make([][]models.RemoteExpense, len(kinds))
	errs := make([]error, len(kinds))

	// A plain Group: a failing kind must not cancel its siblings, so the
	// error names every failing kind.
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			results[i], errs[i] = gw.Fetch(ctx, kind, vehicleID)
			if errs[i] != nil {
				return fmt.Errorf("fetch %s: %w", kind, errs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fe := &FetchError{VehicleID: vehicleID}
		for i, err := range errs {
			if err != nil {
				fe.Failures = append(fe.Failures, KindFailure{Kind: kinds[i], Err: err})
			}
		}
		return nil, fe
	}

	var all []models.RemoteExpense
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

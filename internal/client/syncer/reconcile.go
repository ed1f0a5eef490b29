package syncer

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
	"github.com/dmitrijs2005/autoledger/internal/logging"
)

// reconcile aligns the local rows of a vehicle with the freshly fetched
// remote records. The whole vehicle is applied in one transaction.
func (o *Orchestrator) reconcile(ctx context.Context, log logging.Logger, rep *Report, vehicleID int64, snaps []models.RemoteExpense) error {
	idx := newSnapshotIndex(snaps)
	now := o.now()

	var merged, linked, inserted, removed int
	var cleared int64

	err := dbx.WithTx(ctx, o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		expenses := o.repos.Expenses(tx)

		ops, err := o.repos.Operations(tx).ListPending(ctx, rep.ServerID, vehicleID)
		if err != nil {
			return err
		}
		locals, err := expenses.ListForVehicle(ctx, rep.ServerID, vehicleID)
		if err != nil {
			return err
		}

		pending := make(map[int64]bool, len(ops))
		// referenced remote records belong to a row that reconciliation
		// must not touch; they are neither merged nor duplicated.
		referenced := make(map[remoteKey]bool)
		for _, op := range ops {
			pending[op.LocalID] = true
			if op.Payload.HasBase() {
				referenced[remoteKey{kind: *op.Payload.BaseType, id: *op.Payload.BaseRemoteID}] = true
			}
		}

		consumed := make(map[remoteKey]bool)
		var candidates []*models.Expense

		for _, e := range locals {
			if e.Deleted || e.State == models.StateConflict || pending[e.LocalID] {
				if e.RemoteID != nil {
					referenced[remoteKey{kind: e.Kind, id: *e.RemoteID}] = true
				}
				continue
			}

			if e.RemoteID == nil {
				if e.State == models.StateSynced {
					candidates = append(candidates, e)
				}
				continue
			}

			key := remoteKey{kind: e.Kind, id: *e.RemoteID}
			snap, fp, ok := idx.get(e.Kind, *e.RemoteID)
			if !ok {
				if err := expenses.HardDelete(ctx, e.LocalID); err != nil {
					return err
				}
				removed++
				continue
			}
			if consumed[key] {
				log.Warn(ctx, "remote record linked to more than one local row", "local_id", e.LocalID, "remote_id", *e.RemoteID, "kind", e.Kind)
				continue
			}
			consumed[key] = true

			if e.State == models.StateSynced && e.Fingerprint == fp && mapper.ExpenseFingerprint(e) == fp {
				continue
			}
			if err := o.merge(ctx, expenses, e, snap, now); err != nil {
				return err
			}
			merged++
		}

		// An edit queued behind a create that has not been relinked yet names
		// its base by fingerprint only. Hold one matching record for it so
		// the drain can resolve the base on the next pass.
		taken := make(map[remoteKey]bool, len(consumed)+len(referenced))
		for k := range consumed {
			taken[k] = true
		}
		for k := range referenced {
			taken[k] = true
		}
		held := make(map[int64]bool)
		for _, op := range ops {
			p := op.Payload
			if p.HasBase() || p.BaseType == nil || p.BaseFingerprint == nil || held[op.LocalID] {
				continue
			}
			if snap, ok := idx.findFree(*p.BaseType, *p.BaseFingerprint, taken); ok {
				taken[keyOf(snap)] = true
				referenced[keyOf(snap)] = true
				held[op.LocalID] = true
			}
		}

		// Oldest first so that, among identical candidates, the longest
		// waiting row is linked.
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.LocalID < b.LocalID
		})
		used := make(map[int64]bool, len(candidates))

		var walkErr error
		idx.each(func(snap models.RemoteExpense, fp string) {
			if walkErr != nil {
				return
			}
			key := keyOf(snap)
			if consumed[key] || referenced[key] {
				return
			}
			consumed[key] = true

			for _, c := range candidates {
				if used[c.LocalID] || c.Kind != snap.Kind || c.Fingerprint != fp {
					continue
				}
				used[c.LocalID] = true
				if walkErr = o.merge(ctx, expenses, c, snap, now); walkErr == nil {
					linked++
				}
				return
			}

			e := mapper.NewFromRemote(rep.ServerID, snap, now)
			if walkErr = expenses.Insert(ctx, e); walkErr == nil {
				inserted++
			}
		})
		if walkErr != nil {
			return walkErr
		}

		if cleared, err = expenses.ClearStaleErrors(ctx, rep.ServerID, vehicleID); err != nil {
			return err
		}
		return o.repos.SyncMeta(tx).Upsert(ctx, rep.ServerID, vehicleID, now)
	})
	if err != nil {
		return err
	}

	rep.Merged += merged
	rep.Linked += linked
	rep.Inserted += inserted
	rep.RemovedLocally += removed
	rep.ClearedErrors += cleared

	log.Debug(ctx, "vehicle reconciled", "merged", merged, "linked", linked, "inserted", inserted,
		"removed", removed, "cleared", cleared)
	return nil
}

type expenseUpdater interface {
	Update(ctx context.Context, e *models.Expense) error
}

// merge overwrites e from the remote record and marks it SYNCED.
func (o *Orchestrator) merge(ctx context.Context, repo expenseUpdater, e *models.Expense, snap models.RemoteExpense, now time.Time) error {
	mapper.ApplyRemote(e, snap)
	e.State = models.StateSynced
	e.LastError = ""
	e.UpdatedAt = now
	return repo.Update(ctx, e)
}

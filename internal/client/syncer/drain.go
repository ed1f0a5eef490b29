package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/remote"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
	"github.com/dmitrijs2005/autoledger/internal/logging"
)

// drainer applies the queued operations of one vehicle in creation order.
type drainer struct {
	o       *Orchestrator
	log     logging.Logger
	gw      remote.Gateway
	rep     *Report
	vehicle int64
	idx     *snapshotIndex
	// blocked records wait behind an operation that did not complete in
	// this pass.
	blocked map[int64]bool
}

func (o *Orchestrator) drain(ctx context.Context, log logging.Logger, gw remote.Gateway, rep *Report,
	vehicleID int64, ops []*models.Operation, idx *snapshotIndex) error {

	d := &drainer{o: o, log: log, gw: gw, rep: rep, vehicle: vehicleID, idx: idx, blocked: make(map[int64]bool)}

	if err := d.markLinked(ctx, ops); err != nil {
		return err
	}

	for _, op := range ops {
		if d.blocked[op.LocalID] {
			continue
		}
		if op.Attempts >= o.maxAttempts {
			d.exhausted(op)
			continue
		}
		if err := d.apply(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// markLinked records every remote record that a local row or a queued base
// refers to, so orphan matching never claims them.
func (d *drainer) markLinked(ctx context.Context, ops []*models.Operation) error {
	rows, err := d.o.repos.Expenses(d.o.db).ListForVehicle(ctx, d.rep.ServerID, d.vehicle)
	if err != nil {
		return err
	}
	for _, e := range rows {
		if e.RemoteID != nil {
			d.idx.markLinked(e.Kind, *e.RemoteID)
		}
	}
	for _, op := range ops {
		if op.Payload.HasBase() {
			d.idx.markLinked(*op.Payload.BaseType, *op.Payload.BaseRemoteID)
		}
	}
	return nil
}

func (d *drainer) apply(ctx context.Context, op *models.Operation) error {
	e, err := d.o.repos.Expenses(d.o.db).GetByLocalID(ctx, op.LocalID)
	if errors.Is(err, common.ErrNotFound) {
		return d.discard(ctx, op, "record vanished")
	}
	if err != nil {
		return err
	}
	if e.State == models.StateConflict {
		// Resolution re-enqueues whatever is still wanted.
		d.blocked[op.LocalID] = true
		return nil
	}

	switch op.Kind {
	case models.OpCreate:
		return d.create(ctx, op, e)
	case models.OpUpdate:
		return d.update(ctx, op, e)
	case models.OpDelete:
		return d.delete(ctx, op, e)
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidOperation, op.Kind)
	}
}

func (d *drainer) create(ctx context.Context, op *models.Operation, e *models.Expense) error {
	if e.Deleted {
		return d.discard(ctx, op, "record deleted before create")
	}

	fp := mapper.ExpenseFingerprint(e)

	// A previous pass may have created the record remotely and crashed
	// before recording it; link instead of creating a duplicate.
	if snap, ok := d.idx.findUnlinked(e.Kind, fp); ok {
		d.idx.markLinked(snap.Kind, snap.RemoteID)
		id := snap.RemoteID
		if err := d.complete(ctx, op, e.LocalID, &id, fp); err != nil {
			return err
		}
		d.rep.Linked++
		d.log.Info(ctx, "linked queued create to existing remote record", "local_id", e.LocalID, "remote_id", id)
		return nil
	}

	if err := d.gw.Create(ctx, e.Kind, e.VehicleID, e.ExpenseFields); err != nil {
		return d.fail(ctx, op, e, err)
	}
	// The remote returns no id; reconciliation relinks the row by fingerprint.
	if err := d.complete(ctx, op, e.LocalID, nil, fp); err != nil {
		return err
	}
	d.rep.Created++
	return nil
}

// update is modeled as delete+create because the remote has no in-place
// update primitive. The compare-and-swap on the base fingerprint holds
// either way.
func (d *drainer) update(ctx context.Context, op *models.Operation, e *models.Expense) error {
	base, found, linked := d.resolveBase(op.Payload)
	if !linked {
		return d.rewriteAsCreate(ctx, op, e)
	}
	if !found {
		return d.conflict(ctx, op, e, nil, models.ReasonChangedOnServer)
	}
	if op.Payload.BaseFingerprint != nil && base.fingerprint != *op.Payload.BaseFingerprint {
		return d.conflict(ctx, op, e, &base.snap, models.ReasonChangedOnServer)
	}

	if err := d.gw.Delete(ctx, base.snap.Kind, base.snap.RemoteID); err != nil && !remote.IsNotFound(err) {
		return d.fail(ctx, op, e, err)
	}
	d.idx.remove(base.snap.Kind, base.snap.RemoteID)

	// The old remote record is gone. From here on the intent is a plain
	// create, so a failing create is retried as one.
	err := dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		op.Kind = models.OpCreate
		op.Payload = models.OperationPayload{}
		if err := d.o.repos.Operations(tx).Rewrite(ctx, op); err != nil {
			return err
		}
		return d.o.repos.Expenses(tx).Detach(ctx, e.LocalID)
	})
	if err != nil {
		return err
	}
	e.RemoteID = nil

	if err := d.gw.Create(ctx, e.Kind, e.VehicleID, e.ExpenseFields); err != nil {
		return d.fail(ctx, op, e, err)
	}
	if err := d.complete(ctx, op, e.LocalID, nil, mapper.ExpenseFingerprint(e)); err != nil {
		return err
	}
	d.rep.Updated++
	return nil
}

func (d *drainer) delete(ctx context.Context, op *models.Operation, e *models.Expense) error {
	base, found, linked := d.resolveBase(op.Payload)

	if linked && found {
		if op.Payload.BaseFingerprint != nil && base.fingerprint != *op.Payload.BaseFingerprint {
			return d.conflict(ctx, op, e, &base.snap, models.ReasonChangedOnServer)
		}
		if err := d.gw.Delete(ctx, base.snap.Kind, base.snap.RemoteID); err != nil && !remote.IsNotFound(err) {
			return d.fail(ctx, op, e, err)
		}
		d.idx.remove(base.snap.Kind, base.snap.RemoteID)
		d.rep.Deleted++
	}
	// Otherwise the record never reached the remote or is already gone
	// there, which is the desired end state.

	err := dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := d.o.repos.Operations(tx).DeleteAllForRecord(ctx, e.LocalID); err != nil {
			return err
		}
		return d.o.repos.Expenses(tx).HardDelete(ctx, e.LocalID)
	})
	if err != nil {
		return err
	}
	d.blocked[e.LocalID] = true
	return nil
}

type resolvedBase struct {
	snap        models.RemoteExpense
	fingerprint string
}

// resolveBase finds the remote record an UPDATE or DELETE was made against.
// linked is false when the payload names no remote record at all. A base
// without a remote id but with a fingerprint belongs to a record created
// remotely and not yet relinked; it is matched against unlinked records.
func (d *drainer) resolveBase(p models.OperationPayload) (base resolvedBase, found, linked bool) {
	if p.HasBase() {
		snap, fp, ok := d.idx.get(*p.BaseType, *p.BaseRemoteID)
		return resolvedBase{snap: snap, fingerprint: fp}, ok, true
	}
	if p.BaseType != nil && p.BaseFingerprint != nil {
		if snap, ok := d.idx.findUnlinked(*p.BaseType, *p.BaseFingerprint); ok {
			d.idx.markLinked(snap.Kind, snap.RemoteID)
			return resolvedBase{snap: snap, fingerprint: *p.BaseFingerprint}, true, true
		}
	}
	return resolvedBase{}, false, false
}

// rewriteAsCreate turns an UPDATE whose record never reached the remote into
// a CREATE, processed on the next pass.
func (d *drainer) rewriteAsCreate(ctx context.Context, op *models.Operation, e *models.Expense) error {
	err := dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		op.Kind = models.OpCreate
		op.Payload = models.OperationPayload{}
		if err := d.o.repos.Operations(tx).Rewrite(ctx, op); err != nil {
			return err
		}
		return d.o.repos.Expenses(tx).SetState(ctx, e.LocalID, models.StatePendingCreate, "")
	})
	if err != nil {
		return err
	}
	d.blocked[e.LocalID] = true
	d.rep.Rewritten++
	d.log.Debug(ctx, "update without remote base rewritten as create", "local_id", e.LocalID, "op", op.ID)
	return nil
}

// complete drops the operation and marks its record SYNCED in one transaction.
func (d *drainer) complete(ctx context.Context, op *models.Operation, localID int64, remoteID *int64, fp string) error {
	return dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := d.o.repos.Operations(tx).Delete(ctx, op.ID); err != nil {
			return err
		}
		return d.o.repos.Expenses(tx).MarkSynced(ctx, localID, remoteID, fp)
	})
}

func (d *drainer) discard(ctx context.Context, op *models.Operation, why string) error {
	if err := d.o.repos.Operations(d.o.db).Delete(ctx, op.ID); err != nil {
		return err
	}
	d.rep.Discarded++
	d.log.Debug(ctx, "discarded stale operation", "op", op.ID, "kind", op.Kind, "local_id", op.LocalID, "reason", why)
	return nil
}

// conflict records the discrepancy, flips the record to CONFLICT and drops
// its queued operations in one transaction. The local business fields are
// left untouched.
func (d *drainer) conflict(ctx context.Context, op *models.Operation, e *models.Expense, snap *models.RemoteExpense, reason string) error {
	local, err := mapper.LocalSnapshot(e)
	if err != nil {
		return err
	}
	remoteSnap, err := mapper.RemoteSnapshot(snap)
	if err != nil {
		return err
	}

	c := &models.Conflict{
		ServerID:       d.rep.ServerID,
		VehicleID:      e.VehicleID,
		LocalID:        e.LocalID,
		RemoteSnapshot: remoteSnap,
		LocalSnapshot:  local,
		Reason:         reason,
		CreatedAt:      d.o.now(),
	}

	err = dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := d.o.repos.Conflicts(tx).Create(ctx, c); err != nil {
			return err
		}
		if err := d.o.repos.Expenses(tx).SetState(ctx, e.LocalID, models.StateConflict, reason); err != nil {
			return err
		}
		return d.o.repos.Operations(tx).DeleteAllForRecord(ctx, e.LocalID)
	})
	if err != nil {
		return err
	}

	d.blocked[e.LocalID] = true
	d.rep.Conflicts++

	cerr := &ConflictError{LocalID: e.LocalID, Op: string(op.Kind), Reason: reason}
	if snap != nil {
		id := snap.RemoteID
		cerr.RemoteID = &id
	}
	d.log.Warn(ctx, "conflict recorded", "conflict", c.ID, "error", cerr)
	return nil
}

// fail records a remote failure on the operation and its record. Below the
// attempt ceiling the pass aborts with err; at the ceiling the operation
// becomes terminal and the pass moves on.
func (d *drainer) fail(ctx context.Context, op *models.Operation, e *models.Expense, cause error) error {
	if isCanceled(ctx, cause) {
		return cause
	}

	msg := cause.Error()
	err := dbx.WithTx(ctx, d.o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := d.o.repos.Operations(tx).MarkFailed(ctx, op.ID, msg); err != nil {
			return err
		}
		return d.o.repos.Expenses(tx).SetState(ctx, e.LocalID, models.StateSyncError, msg)
	})
	if err != nil {
		return errors.Join(cause, err)
	}

	op.Attempts++
	op.LastError = msg
	if op.Attempts >= d.o.maxAttempts {
		d.exhausted(op)
		return nil
	}
	return fmt.Errorf("%s expense %d: %w", lowerKind(op.Kind), e.LocalID, cause)
}

func (d *drainer) exhausted(op *models.Operation) {
	d.blocked[op.LocalID] = true
	d.rep.Exhausted = append(d.rep.Exhausted, ExhaustedOp{
		OperationID: op.ID,
		LocalID:     op.LocalID,
		VehicleID:   op.VehicleID,
		Attempts:    op.Attempts,
		LastError:   op.LastError,
	})
}

func lowerKind(k models.OperationKind) string {
	switch k {
	case models.OpCreate:
		return "create"
	case models.OpUpdate:
		return "update"
	case models.OpDelete:
		return "delete"
	default:
		return string(k)
	}
}

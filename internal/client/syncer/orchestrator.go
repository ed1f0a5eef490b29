package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/remote"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/autoledger/internal/logging"
)

// DefaultMaxAttempts is the attempt ceiling of a queued operation.
const DefaultMaxAttempts = 5

// Options tune an Orchestrator. Zero values select defaults.
type Options struct {
	MaxAttempts int
	Now         func() time.Time
}

// Orchestrator runs sync passes.
type Orchestrator struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	gateways    remote.Factory
	lock        *SyncLock
	logger      logging.Logger
	maxAttempts int
	now         func() time.Time
	status      *statusHub
}

func NewOrchestrator(db *sql.DB, repos repomanager.RepositoryManager, gateways remote.Factory,
	lock *SyncLock, logger logging.Logger, opts Options) *Orchestrator {

	o := &Orchestrator{
		db:          db,
		repos:       repos,
		gateways:    gateways,
		lock:        lock,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		status:      newStatusHub(),
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// SyncServer runs one pass for the server, waiting for any pass in progress
// to finish first.
func (o *Orchestrator) SyncServer(ctx context.Context, creds models.Credentials) (*Report, error) {
	if err := o.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer o.lock.Unlock()
	return o.run(ctx, creds)
}

// TrySyncServer runs one pass unless another is in progress, in which case
// it returns ErrSyncInProgress without doing anything.
func (o *Orchestrator) TrySyncServer(ctx context.Context, creds models.Credentials) (*Report, error) {
	if !o.lock.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.lock.Unlock()
	return o.run(ctx, creds)
}

// Status returns the current sync status.
func (o *Orchestrator) Status() Status {
	return o.status.get()
}

// Subscribe returns a channel that receives the current status and every
// later change. The returned func unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Status, func()) {
	return o.status.subscribe()
}

// LastPass returns the persisted time and error of the last pass of the
// server, so the status survives restarts.
func (o *Orchestrator) LastPass(ctx context.Context, serverID string) (time.Time, string, error) {
	meta := o.repos.Metadata(o.db)
	at, err := meta.GetTime(ctx, lastPassKey(serverID))
	if err != nil {
		return time.Time{}, "", err
	}
	msg, err := meta.Get(ctx, lastErrorKey(serverID))
	if err != nil {
		return time.Time{}, "", err
	}
	return at, string(msg), nil
}

func lastPassKey(serverID string) string  { return "sync:" + serverID + ":last_pass_at" }
func lastErrorKey(serverID string) string { return "sync:" + serverID + ":last_error" }

func (o *Orchestrator) run(ctx context.Context, creds models.Credentials) (*Report, error) {
	serverID := creds.ServerID
	log := o.logger.With("server", serverID)

	rep := &Report{ServerID: serverID, StartedAt: o.now()}
	prev := o.status.get()
	o.status.set(Status{Phase: PhaseSyncing, ServerID: serverID, LastPassAt: prev.LastPassAt, LastError: prev.LastError})

	err := o.pass(ctx, log, o.gateways(creds), rep)
	rep.FinishedAt = o.now()
	o.finish(ctx, log, rep, err)

	if err != nil {
		return rep, err
	}
	return rep, nil
}

func (o *Orchestrator) pass(ctx context.Context, log logging.Logger, gw remote.Gateway, rep *Report) error {
	scope, err := o.discoverVehicles(ctx, log, gw, rep)
	if err != nil {
		return err
	}
	rep.Vehicles = scope.ids

	for _, vehicleID := range scope.ids {
		vlog := log.With("vehicle", vehicleID)
		if err := o.syncVehicle(ctx, vlog, gw, rep, vehicleID, scope.orphaned(vehicleID)); err != nil {
			return fmt.Errorf("vehicle %d: %w", vehicleID, err)
		}
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, log logging.Logger, rep *Report, err error) {
	st := Status{Phase: PhaseIdle, ServerID: rep.ServerID, LastPassAt: rep.FinishedAt, Exhausted: len(rep.Exhausted)}
	if err != nil {
		st.Phase = PhaseFailed
		st.LastError = err.Error()
	} else if exhausted := rep.Err(); exhausted != nil {
		st.LastError = exhausted.Error()
	}
	o.status.set(st)

	meta := o.repos.Metadata(o.db)
	if perr := meta.SetTime(ctx, lastPassKey(rep.ServerID), rep.FinishedAt); perr != nil {
		log.Warn(ctx, "failed to persist sync status", "error", perr)
	}
	if perr := meta.Set(ctx, lastErrorKey(rep.ServerID), []byte(st.LastError)); perr != nil {
		log.Warn(ctx, "failed to persist sync status", "error", perr)
	}

	args := []any{
		"vehicles", len(rep.Vehicles), "created", rep.Created, "updated", rep.Updated,
		"deleted", rep.Deleted, "conflicts", rep.Conflicts, "inserted", rep.Inserted,
		"linked", rep.Linked, "removed", rep.RemovedLocally, "exhausted", len(rep.Exhausted),
		"duration", rep.FinishedAt.Sub(rep.StartedAt),
	}
	switch {
	case err != nil:
		log.Error(ctx, "sync pass failed", append(args, "error", err)...)
	case len(rep.Exhausted) > 0:
		log.Error(ctx, "sync pass finished with exhausted operations", args...)
	default:
		log.Info(ctx, "sync pass finished", args...)
	}
}

type vehicleScope struct {
	ids []int64
	// remote holds the ids of the remote vehicle list; nil when the list
	// could not be fetched.
	remote map[int64]bool
}

// orphaned reports whether the vehicle is known to be gone remotely: it is
// only in scope because operations still reference it.
func (s vehicleScope) orphaned(vehicleID int64) bool {
	return s.remote != nil && !s.remote[vehicleID]
}

func (o *Orchestrator) discoverVehicles(ctx context.Context, log logging.Logger, gw remote.Gateway, rep *Report) (vehicleScope, error) {
	var scope vehicleScope
	vehicles := o.repos.Vehicles(o.db)

	list, fetchErr := gw.FetchVehicles(ctx)
	if fetchErr == nil {
		scope.remote = make(map[int64]bool, len(list))
		for i := range list {
			v := list[i]
			v.ServerID = rep.ServerID
			v.UpdatedAt = o.now()
			if err := vehicles.Upsert(ctx, &v); err != nil {
				return scope, err
			}
			scope.remote[v.ID] = true
			scope.ids = append(scope.ids, v.ID)
		}
	} else {
		if ctx.Err() != nil {
			return scope, ctx.Err()
		}
		cached, err := vehicles.ListIDs(ctx, rep.ServerID)
		if err != nil {
			return scope, err
		}
		if len(cached) == 0 {
			return scope, fmt.Errorf("vehicle discovery: %w", fetchErr)
		}
		log.Warn(ctx, "vehicle list unavailable, using cache", "error", fetchErr, "cached", len(cached))
		rep.VehicleCacheHit = true
		scope.ids = cached
	}

	pending, err := o.repos.Operations(o.db).VehicleIDs(ctx, rep.ServerID)
	if err != nil {
		return scope, err
	}
	seen := make(map[int64]bool, len(scope.ids))
	for _, id := range scope.ids {
		seen[id] = true
	}
	for _, id := range pending {
		if !seen[id] {
			seen[id] = true
			scope.ids = append(scope.ids, id)
		}
	}
	return scope, nil
}

func (o *Orchestrator) syncVehicle(ctx context.Context, log logging.Logger, gw remote.Gateway, rep *Report,
	vehicleID int64, orphaned bool) error {

	ops, err := o.repos.Operations(o.db).ListPending(ctx, rep.ServerID, vehicleID)
	if err != nil {
		return err
	}

	snaps, err := o.fetch(ctx, gw, vehicleID, orphaned)
	if err != nil {
		if len(ops) > 0 {
			return err
		}
		// Nothing to drain and no trustworthy remote view. The vehicle is
		// skipped rather than treated as an empty remote set, because
		// reconciling against an empty set would delete every linked local
		// record. It is picked up again by the next pass.
		log.Warn(ctx, "remote fetch failed, skipping vehicle", "error", err)
		rep.SkippedVehicles = append(rep.SkippedVehicles, vehicleID)
		return nil
	}

	if len(ops) > 0 {
		if err := o.drain(ctx, log, gw, rep, vehicleID, ops, newSnapshotIndex(snaps)); err != nil {
			return err
		}
		if snaps, err = o.fetch(ctx, gw, vehicleID, orphaned); err != nil {
			return err
		}
	}

	return o.reconcile(ctx, log, rep, vehicleID, snaps)
}

// fetch returns the remote records of the vehicle. A vehicle that vanished
// from the remote vehicle list has no records, whatever the fetch says.
func (o *Orchestrator) fetch(ctx context.Context, gw remote.Gateway, vehicleID int64, orphaned bool) ([]models.RemoteExpense, error) {
	snaps, err := remote.FetchAll(ctx, gw, vehicleID)
	if err != nil && orphaned && ctx.Err() == nil {
		return nil, nil
	}
	return snaps, err
}

// isCanceled reports whether err stems from ctx being done.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/autoledger/internal/client/mapper"
	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
)

type ConflictService interface {
	ListUnresolved(ctx context.Context, serverID string) ([]*models.Conflict, error)
	// KeepLocal queues the local content again, based on the remote state
	// recorded in the conflict.
	KeepLocal(ctx context.Context, conflictID string) error
	// AcceptRemote discards the local edit in favor of the recorded remote
	// state, or drops the local row when the remote record vanished.
	AcceptRemote(ctx context.Context, conflictID string) error
}

type conflictService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	opts  options
}

func NewConflictService(db *sql.DB, repos repomanager.RepositoryManager, opts ...Option) ConflictService {
	return &conflictService{db: db, repos: repos, opts: buildOptions(opts)}
}

func (s *conflictService) ListUnresolved(ctx context.Context, serverID string) ([]*models.Conflict, error) {
	list, err := s.repos.Conflicts(s.db).ListUnresolved(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return list, nil
}

func (s *conflictService) KeepLocal(ctx context.Context, conflictID string) error {
	return s.resolve(ctx, conflictID, s.keepLocal)
}

func (s *conflictService) AcceptRemote(ctx context.Context, conflictID string) error {
	return s.resolve(ctx, conflictID, s.acceptRemote)
}

type resolution func(ctx context.Context, tx dbx.DBTX, e *models.Expense, remote *mapper.Snapshot) error

// resolve loads the conflict and its record, applies fn and marks the
// conflict resolved, all in one transaction.
func (s *conflictService) resolve(ctx context.Context, conflictID string, fn resolution) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		conflicts := s.repos.Conflicts(tx)
		c, err := conflicts.Get(ctx, conflictID)
		if err != nil {
			return err
		}
		if c.ResolvedAt != nil {
			return common.ErrAlreadyResolved
		}

		var remote *mapper.Snapshot
		if len(c.RemoteSnapshot) > 0 {
			snap, err := mapper.DecodeSnapshot(c.RemoteSnapshot)
			if err != nil {
				return err
			}
			remote = &snap
		}

		e, err := s.repos.Expenses(tx).GetByLocalID(ctx, c.LocalID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			// Nothing left to resolve locally.
		case err != nil:
			return err
		default:
			if err := fn(ctx, tx, e, remote); err != nil {
				return err
			}
		}
		return conflicts.MarkResolved(ctx, c.ID, s.opts.now())
	})
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", conflictID, err)
	}

	s.opts.changed()
	return nil
}

func (s *conflictService) keepLocal(ctx context.Context, tx dbx.DBTX, e *models.Expense, remote *mapper.Snapshot) error {
	expenses := s.repos.Expenses(tx)
	ops := s.repos.Operations(tx)
	now := s.opts.now()

	if err := ops.DeleteAllForRecord(ctx, e.LocalID); err != nil {
		return err
	}

	op := &models.Operation{
		ServerID:  e.ServerID,
		VehicleID: e.VehicleID,
		LocalID:   e.LocalID,
		CreatedAt: now,
	}

	switch {
	case remote != nil && remote.RemoteID != nil:
		id, kind, fp := *remote.RemoteID, remote.Kind, remote.Fingerprint
		e.RemoteID = &id
		e.Fingerprint = fp
		op.Payload = models.OperationPayload{BaseRemoteID: &id, BaseType: &kind, BaseFingerprint: &fp}
		if e.Deleted {
			op.Kind = models.OpDelete
			e.State = models.StatePendingDelete
		} else {
			op.Kind = models.OpUpdate
			e.State = models.StatePendingUpdate
		}
	case e.Deleted:
		// The remote record is gone and so is the local one.
		return expenses.HardDelete(ctx, e.LocalID)
	default:
		e.RemoteID = nil
		e.Fingerprint = ""
		op.Kind = models.OpCreate
		e.State = models.StatePendingCreate
	}

	e.LastError = ""
	e.UpdatedAt = now
	if err := expenses.Update(ctx, e); err != nil {
		return err
	}
	return ops.Enqueue(ctx, op)
}

func (s *conflictService) acceptRemote(ctx context.Context, tx dbx.DBTX, e *models.Expense, remote *mapper.Snapshot) error {
	expenses := s.repos.Expenses(tx)

	if err := s.repos.Operations(tx).DeleteAllForRecord(ctx, e.LocalID); err != nil {
		return err
	}
	if remote == nil || remote.RemoteID == nil {
		return expenses.HardDelete(ctx, e.LocalID)
	}

	r, err := remote.Remote()
	if err != nil {
		return err
	}
	mapper.ApplyRemote(e, r)
	e.Deleted = false
	e.State = models.StateSynced
	e.LastError = ""
	e.UpdatedAt = s.opts.now()
	return expenses.Update(ctx, e)
}

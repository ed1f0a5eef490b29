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

type ExpenseService interface {
	Add(ctx context.Context, serverID string, vehicleID int64, kind models.Kind, fields models.ExpenseFields) (*models.Expense, error)
	Update(ctx context.Context, localID int64, kind models.Kind, fields models.ExpenseFields) (*models.Expense, error)
	Delete(ctx context.Context, localID int64) error
	List(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error)
	Get(ctx context.Context, localID int64) (*models.Expense, error)
	// RetryFailed resets the attempt counters of the server's queued
	// operations so that exhausted ones run again on the next pass.
	RetryFailed(ctx context.Context, serverID string) (int64, error)
}

type expenseService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	opts  options
}

func NewExpenseService(db *sql.DB, repos repomanager.RepositoryManager, opts ...Option) ExpenseService {
	return &expenseService{db: db, repos: repos, opts: buildOptions(opts)}
}

func validate(kind models.Kind, fields models.ExpenseFields) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidKind, kind)
	}
	if fields.Date.IsZero() {
		return fmt.Errorf("%w: date is required", common.ErrInvalidFields)
	}
	if fields.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must not be negative", common.ErrInvalidFields)
	}
	if fields.Odometer != nil && *fields.Odometer < 0 {
		return fmt.Errorf("%w: odometer must not be negative", common.ErrInvalidFields)
	}
	if fields.Liters.Valid && fields.Liters.Decimal.IsNegative() {
		return fmt.Errorf("%w: liters must not be negative", common.ErrInvalidFields)
	}
	return nil
}

func (s *expenseService) Add(ctx context.Context, serverID string, vehicleID int64, kind models.Kind, fields models.ExpenseFields) (*models.Expense, error) {
	if err := validate(kind, fields); err != nil {
		return nil, err
	}

	now := s.opts.now()
	e := &models.Expense{
		ServerID:      serverID,
		VehicleID:     vehicleID,
		Kind:          kind,
		ExpenseFields: mapper.Normalize(kind, fields),
		State:         models.StatePendingCreate,
		UpdatedAt:     now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Expenses(tx).Insert(ctx, e); err != nil {
			return err
		}
		return s.repos.Operations(tx).Enqueue(ctx, &models.Operation{
			ServerID:  serverID,
			VehicleID: vehicleID,
			LocalID:   e.LocalID,
			Kind:      models.OpCreate,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add expense: %w", err)
	}

	s.opts.changed()
	return e, nil
}

func (s *expenseService) Update(ctx context.Context, localID int64, kind models.Kind, fields models.ExpenseFields) (*models.Expense, error) {
	if err := validate(kind, fields); err != nil {
		return nil, err
	}

	var updated *models.Expense
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.editable(ctx, tx, localID)
		if err != nil {
			return err
		}

		latest, err := s.repos.Operations(tx).LatestForRecord(ctx, localID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		now := s.opts.now()
		var op *models.Operation
		switch {
		case latest != nil && latest.Kind == models.OpCreate:
			// The queued create reads the record when it runs.
			e.State = models.StatePendingCreate
		case latest != nil && latest.Kind == models.OpUpdate:
			// The queued update keeps the base it was made against.
			e.State = models.StatePendingUpdate
		default:
			e.State = models.StatePendingUpdate
			op = &models.Operation{
				ServerID:  e.ServerID,
				VehicleID: e.VehicleID,
				LocalID:   e.LocalID,
				Kind:      models.OpUpdate,
				Payload:   models.BaseFromExpense(e),
				CreatedAt: now,
			}
		}

		e.Kind = kind
		e.ExpenseFields = mapper.Normalize(kind, fields)
		e.LastError = ""
		e.UpdatedAt = now
		if err := s.repos.Expenses(tx).Update(ctx, e); err != nil {
			return err
		}
		if op != nil {
			if err := s.repos.Operations(tx).Enqueue(ctx, op); err != nil {
				return err
			}
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update expense %d: %w", localID, err)
	}

	s.opts.changed()
	return updated, nil
}

func (s *expenseService) Delete(ctx context.Context, localID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.editable(ctx, tx, localID)
		if err != nil {
			return err
		}

		ops := s.repos.Operations(tx)
		latest, err := ops.LatestForRecord(ctx, localID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		now := s.opts.now()
		op := &models.Operation{
			ServerID:  e.ServerID,
			VehicleID: e.VehicleID,
			LocalID:   e.LocalID,
			Kind:      models.OpDelete,
			Payload:   models.BaseFromExpense(e),
			CreatedAt: now,
		}

		if latest != nil && latest.Kind == models.OpUpdate {
			// A delete supersedes the queued update but must be checked
			// against the same base.
			op.Payload = latest.Payload
			if err := ops.DeleteAllForRecord(ctx, localID); err != nil {
				return err
			}
		}

		if err := s.repos.Expenses(tx).SoftDelete(ctx, localID, now); err != nil {
			return err
		}
		if err := s.repos.Expenses(tx).SetState(ctx, localID, models.StatePendingDelete, ""); err != nil {
			return err
		}
		return ops.Enqueue(ctx, op)
	})
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", localID, err)
	}

	s.opts.changed()
	return nil
}

// editable loads a record that local edits may touch.
func (s *expenseService) editable(ctx context.Context, db dbx.DBTX, localID int64) (*models.Expense, error) {
	e, err := s.repos.Expenses(db).GetByLocalID(ctx, localID)
	if err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, common.ErrRecordDeleted
	}
	if e.State == models.StateConflict {
		return nil, common.ErrRecordInConflict
	}
	return e, nil
}

func (s *expenseService) List(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error) {
	rows, err := s.repos.Expenses(s.db).ListVisible(ctx, serverID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return rows, nil
}

func (s *expenseService) Get(ctx context.Context, localID int64) (*models.Expense, error) {
	e, err := s.repos.Expenses(s.db).GetByLocalID(ctx, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %d: %w", localID, err)
	}
	return e, nil
}

func (s *expenseService) RetryFailed(ctx context.Context, serverID string) (int64, error) {
	n, err := s.repos.Operations(s.db).ResetAttempts(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset attempts: %w", err)
	}
	if n > 0 {
		s.opts.changed()
	}
	return n, nil
}

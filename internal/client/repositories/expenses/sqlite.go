package expenses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
	"github.com/shopspring/decimal"
)

const columns = `local_id, server_id, vehicle_id, remote_id, kind, date, cost, odometer,
	description, notes, liters, is_fill_to_full, missed_fill, is_recurring,
	sync_state, deleted, fingerprint, last_error, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.Expense) error {
	query := `INSERT INTO expenses (server_id, vehicle_id, remote_id, kind, date, cost, odometer,
			description, notes, liters, is_fill_to_full, missed_fill, is_recurring,
			sync_state, deleted, fingerprint, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		e.ServerID, e.VehicleID, e.RemoteID, string(e.Kind),
		e.Date.Format(models.DateLayout), e.Cost.StringFixed(2), e.Odometer,
		e.Description, e.Notes, litersValue(e.Liters), e.FillToFull, e.MissedFill, e.Recurring,
		string(e.State), e.Deleted, e.Fingerprint, e.LastError, e.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get expense id: %w", err)
	}
	e.LocalID = id
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.Expense) error {
	query := `UPDATE expenses SET vehicle_id = ?, remote_id = ?, kind = ?, date = ?, cost = ?,
			odometer = ?, description = ?, notes = ?, liters = ?, is_fill_to_full = ?,
			missed_fill = ?, is_recurring = ?, sync_state = ?, deleted = ?, fingerprint = ?,
			last_error = ?, updated_at = ?
		WHERE local_id = ?`

	res, err := r.db.ExecContext(ctx, query,
		e.VehicleID, e.RemoteID, string(e.Kind), e.Date.Format(models.DateLayout),
		e.Cost.StringFixed(2), e.Odometer, e.Description, e.Notes, litersValue(e.Liters),
		e.FillToFull, e.MissedFill, e.Recurring, string(e.State), e.Deleted, e.Fingerprint,
		e.LastError, e.UpdatedAt.UnixNano(), e.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update expense %d: %w", e.LocalID, err)
	}
	return expectOne(res, e.LocalID)
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID int64) (*models.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM expenses WHERE local_id = ?`, localID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", localID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %d: %w", localID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListVisible(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error) {
	query := `SELECT ` + columns + ` FROM expenses
		WHERE server_id = ? AND vehicle_id = ? AND deleted = 0
		ORDER BY date DESC, odometer DESC, local_id ASC`
	return r.list(ctx, query, serverID, vehicleID)
}

func (r *SQLiteRepository) ListForVehicle(ctx context.Context, serverID string, vehicleID int64) ([]*models.Expense, error) {
	query := `SELECT ` + columns + ` FROM expenses
		WHERE server_id = ? AND vehicle_id = ?
		ORDER BY local_id ASC`
	return r.list(ctx, query, serverID, vehicleID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select expenses: %w", err)
	}
	defer rows.Close()

	var result []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetState(ctx context.Context, localID int64, state models.SyncState, lastError string) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidState, state)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_state = ?, last_error = ? WHERE local_id = ?`,
		string(state), lastError, localID)
	if err != nil {
		return fmt.Errorf("failed to set state of expense %d: %w", localID, err)
	}
	return expectOne(res, localID)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID int64, remoteID *int64, fingerprint string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses
		SET sync_state = ?, remote_id = ?, fingerprint = ?, last_error = ''
		WHERE local_id = ?`, string(models.StateSynced), remoteID, fingerprint, localID)
	if err != nil {
		return fmt.Errorf("failed to mark expense %d synced: %w", localID, err)
	}
	return expectOne(res, localID)
}

func (r *SQLiteRepository) Detach(ctx context.Context, localID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET remote_id = NULL WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to detach expense %d: %w", localID, err)
	}
	return expectOne(res, localID)
}

// HardDelete is idempotent.
func (r *SQLiteRepository) HardDelete(ctx context.Context, localID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, localID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET deleted = 1, updated_at = ? WHERE local_id = ?`,
		at.UnixNano(), localID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete expense %d: %w", localID, err)
	}
	return expectOne(res, localID)
}

func (r *SQLiteRepository) ClearStaleErrors(ctx context.Context, serverID string, vehicleID int64) (int64, error) {
	query := `UPDATE expenses SET sync_state = ?, last_error = ''
		WHERE server_id = ? AND vehicle_id = ? AND sync_state = ? AND deleted = 0
		  AND NOT EXISTS (SELECT 1 FROM pending_operations p WHERE p.local_id = expenses.local_id)
		  AND NOT EXISTS (SELECT 1 FROM conflicts c WHERE c.local_id = expenses.local_id AND c.resolved_at IS NULL)`

	res, err := r.db.ExecContext(ctx, query, string(models.StateSynced), serverID, vehicleID, string(models.StateSyncError))
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale errors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (*models.Expense, error) {
	var (
		e                  models.Expense
		remoteID, odometer sql.NullInt64
		kind, state        string
		date, cost         string
		liters             sql.NullString
		fill, missed, rec  sql.NullBool
		updatedAt          int64
	)

	err := s.Scan(&e.LocalID, &e.ServerID, &e.VehicleID, &remoteID, &kind, &date, &cost, &odometer,
		&e.Description, &e.Notes, &liters, &fill, &missed, &rec,
		&state, &e.Deleted, &e.Fingerprint, &e.LastError, &updatedAt)
	if err != nil {
		return nil, err
	}

	if e.Kind, err = models.ParseKind(kind); err != nil {
		return nil, err
	}
	if e.State, err = models.ParseSyncState(state); err != nil {
		return nil, err
	}
	if e.Date, err = time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	if e.Cost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("invalid stored cost %q: %w", cost, err)
	}
	if liters.Valid {
		l, err := decimal.NewFromString(liters.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored liters %q: %w", liters.String, err)
		}
		e.Liters = decimal.NewNullDecimal(l)
	}
	if remoteID.Valid {
		e.RemoteID = &remoteID.Int64
	}
	if odometer.Valid {
		e.Odometer = &odometer.Int64
	}
	e.FillToFull = nullBool(fill)
	e.MissedFill = nullBool(missed)
	e.Recurring = nullBool(rec)
	e.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &e, nil
}

func nullBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func litersValue(l decimal.NullDecimal) any {
	if !l.Valid {
		return nil
	}
	return l.Decimal.String()
}

func expectOne(res sql.Result, localID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", localID, common.ErrNotFound)
	}
	return nil
}

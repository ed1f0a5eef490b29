package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
	"github.com/google/uuid"
)

const columns = `id, server_id, vehicle_id, local_id, kind, payload, created_at, attempts, last_error`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.Operation) error {
	if _, err := models.ParseOperationKind(string(op.Kind)); err != nil {
		return err
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}

	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode operation payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO pending_operations (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.ServerID, op.VehicleID, op.LocalID, string(op.Kind), string(payload),
		op.CreatedAt.UnixNano(), op.Attempts, op.LastError)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, serverID string, vehicleID int64) ([]*models.Operation, error) {
	return r.list(ctx, `SELECT `+columns+` FROM pending_operations
		WHERE server_id = ? AND vehicle_id = ?
		ORDER BY created_at, rowid`, serverID, vehicleID)
}

func (r *SQLiteRepository) ListPendingForServer(ctx context.Context, serverID string) ([]*models.Operation, error) {
	return r.list(ctx, `SELECT `+columns+` FROM pending_operations
		WHERE server_id = ?
		ORDER BY created_at, rowid`, serverID)
}

func (r *SQLiteRepository) LatestForRecord(ctx context.Context, localID int64) (*models.Operation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM pending_operations
		WHERE local_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, localID)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation for expense %d: %w", localID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest operation: %w", err)
	}
	return op, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Operation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAllForRecord(ctx context.Context, localID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete operations of expense %d: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pending_operations
		SET attempts = attempts + 1, last_error = ? WHERE id = ?`, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark operation %s failed: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *SQLiteRepository) Rewrite(ctx context.Context, op *models.Operation) error {
	if _, err := models.ParseOperationKind(string(op.Kind)); err != nil {
		return err
	}
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode operation payload: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE pending_operations SET kind = ?, payload = ? WHERE id = ?`,
		string(op.Kind), string(payload), op.ID)
	if err != nil {
		return fmt.Errorf("failed to rewrite operation %s: %w", op.ID, err)
	}
	return expectOne(res, op.ID)
}

func (r *SQLiteRepository) ResetAttempts(ctx context.Context, serverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE pending_operations SET attempts = 0
		WHERE server_id = ? AND attempts > 0`, serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) VehicleIDs(ctx context.Context, serverID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT vehicle_id FROM pending_operations
		WHERE server_id = ? ORDER BY vehicle_id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to select operation vehicles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation vehicles: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (*models.Operation, error) {
	var (
		op        models.Operation
		kind      string
		payload   string
		createdAt int64
	)
	if err := s.Scan(&op.ID, &op.ServerID, &op.VehicleID, &op.LocalID, &kind, &payload,
		&createdAt, &op.Attempts, &op.LastError); err != nil {
		return nil, err
	}

	k, err := models.ParseOperationKind(kind)
	if err != nil {
		return nil, err
	}
	op.Kind = k

	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &op.Payload); err != nil {
			return nil, fmt.Errorf("invalid payload of operation %s: %w", op.ID, err)
		}
	}
	op.CreatedAt = time.Unix(0, createdAt).UTC()
	return &op, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %s: %w", id, common.ErrNotFound)
	}
	return nil
}

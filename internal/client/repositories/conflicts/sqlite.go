package conflicts

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

const columns = `id, server_id, vehicle_id, local_id, remote_snapshot, local_snapshot, reason, created_at, resolved_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Conflict) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	var remote any
	if len(c.RemoteSnapshot) > 0 {
		remote = string(c.RemoteSnapshot)
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO conflicts (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		c.ID, c.ServerID, c.VehicleID, c.LocalID, remote, string(c.LocalSnapshot), c.Reason, c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create conflict: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListUnresolved(ctx context.Context, serverID string) ([]*models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM conflicts
		WHERE server_id = ? AND resolved_at IS NULL
		ORDER BY created_at, rowid`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []*models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Conflict, error) {
	c, err := scanConflict(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM conflicts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conflict %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) HasUnresolvedForRecord(ctx context.Context, localID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflicts
		WHERE local_id = ? AND resolved_at IS NULL`, localID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conflicts SET resolved_at = ?
		WHERE id = ? AND resolved_at IS NULL`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("conflict %s: %w", id, common.ErrAlreadyResolved)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConflict(s scanner) (*models.Conflict, error) {
	var (
		c          models.Conflict
		remote     sql.NullString
		local      string
		createdAt  int64
		resolvedAt sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.ServerID, &c.VehicleID, &c.LocalID, &remote, &local,
		&c.Reason, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}

	if remote.Valid {
		c.RemoteSnapshot = json.RawMessage(remote.String)
	}
	c.LocalSnapshot = json.RawMessage(local)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	if resolvedAt.Valid {
		t := time.Unix(0, resolvedAt.Int64).UTC()
		c.ResolvedAt = &t
	}
	return &c, nil
}

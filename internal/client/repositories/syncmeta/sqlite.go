package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/common"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, serverID string, vehicleID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_meta (server_id, vehicle_id, last_full_sync) VALUES (?, ?, ?)
		ON CONFLICT(server_id, vehicle_id) DO UPDATE SET last_full_sync = excluded.last_full_sync
	`, serverID, vehicleID, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert sync meta for vehicle %d: %w", vehicleID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, serverID string, vehicleID int64) (*models.SyncMeta, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT last_full_sync FROM sync_meta WHERE server_id = ? AND vehicle_id = ?`,
		serverID, vehicleID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync meta for vehicle %d: %w", vehicleID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync meta: %w", err)
	}
	return &models.SyncMeta{ServerID: serverID, VehicleID: vehicleID, LastFullSync: time.Unix(0, ts).UTC()}, nil
}

func (r *SQLiteRepository) List(ctx context.Context, serverID string) ([]*models.SyncMeta, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT vehicle_id, last_full_sync FROM sync_meta
		WHERE server_id = ? ORDER BY vehicle_id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync meta: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncMeta
	for rows.Next() {
		m := models.SyncMeta{ServerID: serverID}
		var ts int64
		if err := rows.Scan(&m.VehicleID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan sync meta: %w", err)
		}
		m.LastFullSync = time.Unix(0, ts).UTC()
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync meta: %w", err)
	}
	return result, nil
}

package vehicles

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/autoledger/internal/client/models"
	"github.com/dmitrijs2005/autoledger/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert leaves an unchanged row (including its updated_at) untouched.
func (r *SQLiteRepository) Upsert(ctx context.Context, v *models.Vehicle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles (server_id, id, year, make, model, license_plate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id, id) DO UPDATE SET
			year = excluded.year,
			make = excluded.make,
			model = excluded.model,
			license_plate = excluded.license_plate,
			updated_at = excluded.updated_at
		WHERE vehicles.year IS NOT excluded.year
		   OR vehicles.make IS NOT excluded.make
		   OR vehicles.model IS NOT excluded.model
		   OR vehicles.license_plate IS NOT excluded.license_plate
	`, v.ServerID, v.ID, v.Year, v.Make, v.Model, v.LicensePlate, v.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle %d: %w", v.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, serverID string) ([]*models.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT server_id, id, year, make, model, license_plate, updated_at
		FROM vehicles WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to select vehicles: %w", err)
	}
	defer rows.Close()

	var result []*models.Vehicle
	for rows.Next() {
		var (
			v  models.Vehicle
			ts int64
		)
		if err := rows.Scan(&v.ServerID, &v.ID, &v.Year, &v.Make, &v.Model, &v.LicensePlate, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		v.UpdatedAt = time.Unix(0, ts).UTC()
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicles: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListIDs(ctx context.Context, serverID string) ([]int64, error) {
	list, err := r.List(ctx, serverID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, v := range list {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// ClaimSpot атомарно занимает свободное место с наименьшим номером.
// Возвращает ErrNoCapacity, если свободных мест нет.
func (db *DB) ClaimSpot(ctx context.Context, lotID int64) (*models.Spot, error) {
	if _, ok := db.GetLot(lotID); !ok {
		return nil, ErrLotNotFound
	}

	db.claimMu.Lock()
	defer db.claimMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	spot, err := claimSpotTx(ctx, tx, lotID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return spot, nil
}

// claimSpotTx выполняет read-then-flip внутри транзакции вызывающего.
// Вызывается только под claimMu.
func claimSpotTx(ctx context.Context, tx *sql.Tx, lotID int64) (*models.Spot, error) {
	var spot models.Spot
	query := `SELECT id, lot_id, spot_number, status, created_at FROM spots
              WHERE lot_id = ? AND status = ?
              ORDER BY spot_number LIMIT 1`
	err := tx.QueryRowContext(ctx, query, lotID, models.SpotAvailable).Scan(
		&spot.ID,
		&spot.LotID,
		&spot.SpotNumber,
		&spot.Status,
		&spot.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoCapacity
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select available spot: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE spots SET status = ? WHERE id = ? AND status = ?`,
		models.SpotOccupied, spot.ID, models.SpotAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to occupy spot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Под claimMu сюда попасть нельзя; страхует от вызова вне мьютекса
		return nil, ErrNoCapacity
	}

	spot.Status = models.SpotOccupied
	return &spot, nil
}

// ReleaseSpot помечает место свободным. Контракт вызывающего: освобождаются
// только места, закрытые самим движком бронирований.
func (db *DB) ReleaseSpot(ctx context.Context, spotID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE spots SET status = ? WHERE id = ?`,
		models.SpotAvailable, spotID)
	if err != nil {
		return fmt.Errorf("failed to release spot %d: %w", spotID, err)
	}
	return nil
}

// OccupancyView возвращает снимок занятости парковки
func (db *DB) OccupancyView(ctx context.Context, lotID int64) (*models.OccupancyView, error) {
	if _, ok := db.GetLot(lotID); !ok {
		return nil, ErrLotNotFound
	}

	query := `SELECT
                COUNT(*),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
              FROM spots WHERE lot_id = ?`

	var total, available int64
	err := db.QueryRowContext(ctx, query, models.SpotAvailable, lotID).Scan(&total, &available)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupancy: %w", err)
	}

	return &models.OccupancyView{
		LotID:     lotID,
		Total:     total,
		Available: available,
		Occupied:  total - available,
	}, nil
}

// GetLotsWithAvailability возвращает все парковки со счетчиками мест
func (db *DB) GetLotsWithAvailability(ctx context.Context) ([]models.LotAvailability, error) {
	lots := db.GetLots()
	result := make([]models.LotAvailability, 0, len(lots))

	for _, lot := range lots {
		view, err := db.OccupancyView(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.LotAvailability{
			Lot:            lot,
			AvailableSpots: view.Available,
			OccupiedSpots:  view.Occupied,
		})
	}

	return result, nil
}

// GetSpot возвращает место по ID
func (db *DB) GetSpot(ctx context.Context, spotID int64) (*models.Spot, error) {
	var spot models.Spot
	query := `SELECT id, lot_id, spot_number, status, created_at FROM spots WHERE id = ?`
	err := db.QueryRowContext(ctx, query, spotID).Scan(
		&spot.ID,
		&spot.LotID,
		&spot.SpotNumber,
		&spot.Status,
		&spot.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get spot %d: %w", spotID, err)
	}
	return &spot, nil
}

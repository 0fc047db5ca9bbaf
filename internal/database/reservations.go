package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// BookReservationWithLock создает открытое бронирование вместе с захватом
// места в одной транзакции под claimMu. Проверка "одно открытое бронирование
// на пользователя" выполняется до захвата места — без лишней аллокации.
func (db *DB) BookReservationWithLock(ctx context.Context, res *models.Reservation) error {
	lot, ok := db.GetLot(res.LotID)
	if !ok {
		return ErrLotNotFound
	}

	db.claimMu.Lock()
	defer db.claimMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Fail fast: у пользователя не должно быть открытого бронирования
	var openCount int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ? AND status = ?`,
		res.UserID, models.ReservationOpen).Scan(&openCount)
	if err != nil {
		return fmt.Errorf("failed to check open reservations: %w", err)
	}
	if openCount > 0 {
		return ErrDuplicateActiveReservation
	}

	// 2. Захватываем место с наименьшим номером
	spot, err := claimSpotTx(ctx, tx, res.LotID)
	if err != nil {
		return err
	}

	// 3. Создаем бронирование
	now := time.Now()
	if res.StartedAt.IsZero() {
		res.StartedAt = now
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (
            user_id, spot_id, spot_number, lot_id, lot_name,
            vehicle_number, started_at, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.UserID,
		spot.ID,
		spot.SpotNumber,
		res.LotID,
		lot.Name,
		res.VehicleNumber,
		res.StartedAt,
		models.ReservationOpen,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	res.ID = id
	res.SpotID = spot.ID
	res.SpotNumber = spot.SpotNumber
	res.LotName = lot.Name
	res.Status = models.ReservationOpen
	res.CreatedAt = now

	return nil
}

// CloseReservation закрывает бронирование и освобождает место одной
// транзакцией: нет окна, в котором место свободно при незакрытом биллинге.
// Переход open -> closed выполняется ровно один раз.
func (db *DB) CloseReservation(ctx context.Context, reservationID int64, endedAt time.Time, cost float64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET ended_at = ?, cost = ?, status = ?
         WHERE id = ? AND status = ?`,
		endedAt, cost, models.ReservationClosed, reservationID, models.ReservationOpen)
	if err != nil {
		return fmt.Errorf("failed to close reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Конкурентный release уже закрыл бронирование
		return ErrNoActiveReservation
	}

	var spotID int64
	err = tx.QueryRowContext(ctx,
		`SELECT spot_id FROM reservations WHERE id = ?`, reservationID).Scan(&spotID)
	if err != nil {
		return fmt.Errorf("failed to resolve spot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE spots SET status = ? WHERE id = ?`,
		models.SpotAvailable, spotID); err != nil {
		return fmt.Errorf("failed to free spot: %w", err)
	}

	return tx.Commit()
}

// GetOpenReservation возвращает открытое бронирование пользователя
func (db *DB) GetOpenReservation(ctx context.Context, userID int64) (*models.Reservation, error) {
	query := selectReservation + ` WHERE user_id = ? AND status = ?`
	res, err := db.scanReservation(db.QueryRowContext(ctx, query, userID, models.ReservationOpen))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveReservation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open reservation: %w", err)
	}
	return res, nil
}

// GetReservation возвращает бронирование по ID
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := selectReservation + ` WHERE id = ?`
	res, err := db.scanReservation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return res, nil
}

// GetUserReservations возвращает страницу истории пользователя,
// отсортированную от новых к старым
func (db *DB) GetUserReservations(ctx context.Context, userID int64, page, perPage int) (*models.ReservationPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = models.DefaultPaginationSize
	}
	if perPage > models.MaxPaginationSize {
		perPage = models.MaxPaginationSize
	}

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}

	offset := (page - 1) * perPage
	query := selectReservation + `
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, query, userID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations, err := db.scanReservations(rows)
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &models.ReservationPage{
		Reservations: reservations,
		Pagination: models.Pagination{
			Page:    page,
			PerPage: perPage,
			Pages:   pages,
			Total:   total,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}, nil
}

// GetAllUserReservations возвращает полную историю для экспорта
func (db *DB) GetAllUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error) {
	query := selectReservation + ` WHERE user_id = ? ORDER BY started_at DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()
	return db.scanReservations(rows)
}

// GetClosedReservationsByDateRange возвращает закрытые бронирования за период
func (db *DB) GetClosedReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	query := selectReservation + `
        WHERE status = ? AND ended_at >= ? AND ended_at < ?
        ORDER BY ended_at`
	rows, err := db.QueryContext(ctx, query, models.ReservationClosed, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed reservations: %w", err)
	}
	defer rows.Close()
	return db.scanReservations(rows)
}

// GetDashboardStats собирает агрегаты для дашборда пользователя
func (db *DB) GetDashboardStats(ctx context.Context, userID int64) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	query := `SELECT
                COUNT(*),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN status = ? THEN cost ELSE 0 END), 0)
              FROM reservations WHERE user_id = ?`
	err := db.QueryRowContext(ctx, query,
		models.ReservationClosed, models.ReservationOpen, models.ReservationClosed, userID).Scan(
		&stats.TotalReservations,
		&stats.CompletedReservations,
		&stats.ActiveReservations,
		&stats.TotalSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}

	// Самая используемая парковка
	var mostUsed sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT lot_name FROM reservations WHERE user_id = ?
         GROUP BY lot_name ORDER BY COUNT(*) DESC, lot_name LIMIT 1`,
		userID).Scan(&mostUsed)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get most used lot: %w", err)
	}
	stats.MostUsedLot = mostUsed.String

	if current, err := db.GetOpenReservation(ctx, userID); err == nil {
		stats.CurrentReservation = current
	}

	recentQuery := selectReservation + `
        WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 5`
	rows, err := db.QueryContext(ctx, recentQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reservations: %w", err)
	}
	defer rows.Close()
	stats.RecentReservations, err = db.scanReservations(rows)
	if err != nil {
		return nil, err
	}

	stats.LotsCount = int64(len(db.GetLots()))
	return stats, nil
}

const selectReservation = `
    SELECT id, user_id, spot_id, spot_number, lot_id, lot_name,
           vehicle_number, started_at, ended_at, cost, status, created_at
    FROM reservations`

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanReservation(row rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	var endedAt sql.NullTime
	var cost sql.NullFloat64

	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.SpotID,
		&res.SpotNumber,
		&res.LotID,
		&res.LotName,
		&res.VehicleNumber,
		&res.StartedAt,
		&endedAt,
		&cost,
		&res.Status,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		res.EndedAt = &t
	}
	if cost.Valid {
		c := cost.Float64
		res.Cost = &c
	}
	return &res, nil
}

func (db *DB) scanReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	for rows.Next() {
		res, err := db.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

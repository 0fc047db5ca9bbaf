package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB

	// claimMu сериализует claim-and-flip: две конкурентные заявки
	// никогда не видят один и тот же свободный слот
	claimMu sync.Mutex

	mu         sync.RWMutex
	lotsCache  map[int64]models.Lot
	sortedLots []models.Lot

	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite допускает только одного писателя; одно соединение избавляет
	// от SQLITE_BUSY при конкурентных транзакциях
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:        db,
		lotsCache: make(map[int64]models.Lot),
		logger:    logger,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Таблица пользователей
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY,
            username TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'user',
            chat_id INTEGER NOT NULL DEFAULT 0,
            last_login DATETIME,
            last_booking DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Таблица парковочных мест
		`CREATE TABLE IF NOT EXISTS spots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            lot_id INTEGER NOT NULL,
            spot_number INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'available',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(lot_id, spot_number)
        )`,
		// Таблица бронирований
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            spot_id INTEGER NOT NULL,
            spot_number INTEGER NOT NULL,
            lot_id INTEGER NOT NULL,
            lot_name TEXT NOT NULL,
            vehicle_number TEXT NOT NULL,
            started_at DATETIME NOT NULL,
            ended_at DATETIME,
            cost REAL,
            status TEXT NOT NULL DEFAULT 'open',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Таблица задач экспорта
		`CREATE TABLE IF NOT EXISTS export_jobs (
            id TEXT PRIMARY KEY,
            user_id INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            format TEXT NOT NULL DEFAULT 'csv',
            artifact_path TEXT NOT NULL DEFAULT '',
            error_message TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            completed_at DATETIME,
            expires_at DATETIME
        )`,
		// Журнал действий пользователей
		`CREATE TABLE IF NOT EXISTS activities (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            type TEXT NOT NULL,
            data TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_spots_lot_status ON spots(lot_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_spot_id ON reservations(spot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_export_jobs_user_id ON export_jobs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetLots кэширует метаданные парковок и создает недостающие места.
// Метаданные приходят от административного слоя и здесь не изменяются.
func (db *DB) SetLots(ctx context.Context, lots []models.Lot) error {
	for _, lot := range lots {
		if err := db.provisionSpots(ctx, lot); err != nil {
			return fmt.Errorf("provision spots for lot %d: %w", lot.ID, err)
		}
	}

	sorted := append([]models.Lot(nil), lots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	db.mu.Lock()
	db.lotsCache = make(map[int64]models.Lot, len(lots))
	for _, lot := range lots {
		db.lotsCache[lot.ID] = lot
	}
	db.sortedLots = sorted
	db.mu.Unlock()

	return nil
}

// provisionSpots досоздает места 1..TotalSpots; существующие не трогает,
// чтобы не сбросить статус занятых мест
func (db *DB) provisionSpots(ctx context.Context, lot models.Lot) error {
	query := `INSERT INTO spots (lot_id, spot_number, status) VALUES (?, ?, ?)
              ON CONFLICT(lot_id, spot_number) DO NOTHING`
	for n := int64(1); n <= lot.TotalSpots; n++ {
		if _, err := db.ExecContext(ctx, query, lot.ID, n, models.SpotAvailable); err != nil {
			return err
		}
	}
	return nil
}

// GetLot возвращает метаданные парковки из кэша
func (db *DB) GetLot(lotID int64) (models.Lot, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	lot, ok := db.lotsCache[lotID]
	return lot, ok
}

// GetLots возвращает отсортированный список парковок
func (db *DB) GetLots() []models.Lot {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]models.Lot(nil), db.sortedLots...)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

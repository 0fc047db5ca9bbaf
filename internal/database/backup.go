package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// backupPrefix scopes cleanup to files this service wrote. Operators
// sometimes drop manual dumps into the same directory; those are
// never touched.
const backupPrefix = "parking_backup_"

// BackupService snapshots the reservations database on an interval.
// VACUUM INTO gives a consistent online copy while bookings keep
// flowing; the plain file copy is only a fallback for old sqlite
// builds.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath: dbPath,
		config: cfg,
		logger: logger,
	}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("database backups disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("unparseable backup schedule, using 24h")
		}
	}
	s.logger.Info().Dur("interval", interval).Str("storage", s.config.StoragePath).Msg("backup service started")

	// Первый бэкап сразу, не дожидаясь тикера
	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

func (s *BackupService) PerformBackup() error {
	if _, err := os.Stat(s.dbPath); os.IsNotExist(err) {
		// :memory: или еще не созданный файл бэкапить нечего
		return nil
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := backupPrefix + time.Now().Format("20060102_150405") + ".db"
	target := filepath.Join(s.config.StoragePath, name)

	s.logger.Info().Str("path", target).Msg("backing up reservations database")

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", target)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return s.copyDatabaseFile(target)
	}
	return nil
}

// copyDatabaseFile is not atomic for sqlite; a write landing mid-copy
// can corrupt the snapshot. Acceptable only as a last resort.
func (s *BackupService) copyDatabaseFile(target string) error {
	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		return err
	}
	return dest.Sync()
}

// CleanupOldBackups removes snapshots older than the retention window.
// Only files with the service's own prefix are considered.
func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.config.StoragePath, entry.Name())); err != nil {
				s.logger.Error().Err(err).Str("file", entry.Name()).Msg("failed to delete old backup")
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("old backups deleted")
	}
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// CreateExportJob создает задачу в pending, если у пользователя нет
// задачи в pending/processing. Проверка и вставка — одна транзакция.
func (db *DB) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_jobs WHERE user_id = ? AND status IN (?, ?)`,
		job.UserID, models.JobPending, models.JobProcessing).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to check active jobs: %w", err)
	}
	if active > 0 {
		return ErrExportInProgress
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO export_jobs (id, user_id, status, format, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.UserID, models.JobPending, job.Format, now)
	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export job: %w", err)
	}

	job.Status = models.JobPending
	job.CreatedAt = now
	return nil
}

// GetExportJob возвращает задачу по ID
func (db *DB) GetExportJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := db.scanExportJob(db.QueryRowContext(ctx, selectExportJob+` WHERE id = ?`, jobID))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}
	return job, nil
}

// MarkJobProcessing переводит pending -> processing. Возвращает
// ErrInvalidTransition, если задача уже ушла из pending (например отменена).
func (db *DB) MarkJobProcessing(ctx context.Context, jobID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ? WHERE id = ? AND status = ?`,
		models.JobProcessing, jobID, models.JobPending)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	return db.checkTransition(result)
}

// CompleteJob фиксирует processing -> completed. Условный UPDATE —
// финальная точка коммита: конкурентная отмена побеждает, и вызывающий
// обязан выбросить артефакт.
func (db *DB) CompleteJob(ctx context.Context, jobID, artifactPath string, completedAt, expiresAt time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, artifact_path = ?, completed_at = ?, expires_at = ?
         WHERE id = ? AND status = ?`,
		models.JobCompleted, artifactPath, completedAt, expiresAt, jobID, models.JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return db.checkTransition(result)
}

// FailJob переводит pending/processing -> failed с текстом ошибки
func (db *DB) FailJob(ctx context.Context, jobID, errorMessage string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, error_message = ?, completed_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		models.JobFailed, errorMessage, time.Now(), jobID, models.JobPending, models.JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return db.checkTransition(result)
}

// CancelJob переводит pending/processing -> cancelled
func (db *DB) CancelJob(ctx context.Context, jobID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, error_message = ?, completed_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		models.JobCancelled, "cancelled by user", time.Now(), jobID, models.JobPending, models.JobProcessing)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return db.checkTransition(result)
}

// ClearArtifact стирает путь к артефакту после sweep; статус не меняется
func (db *DB) ClearArtifact(ctx context.Context, jobID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET artifact_path = '' WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to clear artifact: %w", err)
	}
	return nil
}

// GetExpiredCompletedJobs возвращает completed-задачи с истекшим сроком
// и непустым артефактом
func (db *DB) GetExpiredCompletedJobs(ctx context.Context, now time.Time) ([]*models.ExportJob, error) {
	query := selectExportJob + `
        WHERE status = ? AND expires_at < ? AND artifact_path != ''`
	rows, err := db.QueryContext(ctx, query, models.JobCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired jobs: %w", err)
	}
	defer rows.Close()
	return db.scanExportJobs(rows)
}

// GetPendingExportJobs возвращает pending-задачи для воркера
func (db *DB) GetPendingExportJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectExportJob + `
        WHERE status = ? ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.JobPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending export jobs: %w", err)
	}
	defer rows.Close()
	return db.scanExportJobs(rows)
}

// GetUserExportJobs возвращает последние задачи пользователя
func (db *DB) GetUserExportJobs(ctx context.Context, userID int64, limit int) ([]*models.ExportJob, error) {
	if limit <= 0 {
		limit = 10
	}
	query := selectExportJob + `
        WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user export jobs: %w", err)
	}
	defer rows.Close()
	return db.scanExportJobs(rows)
}

// GetExportJobs возвращает задачи всех пользователей (админ),
// опционально отфильтрованные по статусу
func (db *DB) GetExportJobs(ctx context.Context, status string, page, perPage int) ([]*models.ExportJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > models.MaxPaginationSize {
		perPage = 20
	}

	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM export_jobs`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count export jobs: %w", err)
	}

	query := selectExportJob + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query export jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := db.scanExportJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// FailOrphanedJobs проваливает задачи, застрявшие в processing после
// рестарта процесса: продолжить их производство уже некому
func (db *DB) FailOrphanedJobs(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, error_message = ?, completed_at = ?
         WHERE status = ?`,
		models.JobFailed, "orphaned by process restart", time.Now(), models.JobProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to fail orphaned jobs: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) checkTransition(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

const selectExportJob = `
    SELECT id, user_id, status, format, artifact_path, error_message,
           created_at, completed_at, expires_at
    FROM export_jobs`

func (db *DB) scanExportJob(row rowScanner) (*models.ExportJob, error) {
	var job models.ExportJob
	var completedAt, expiresAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.Format,
		&job.ArtifactPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&completedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		job.ExpiresAt = &t
	}
	return &job, nil
}

func (db *DB) scanExportJobs(rows *sql.Rows) ([]*models.ExportJob, error) {
	var jobs []*models.ExportJob
	for rows.Next() {
		job, err := db.scanExportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

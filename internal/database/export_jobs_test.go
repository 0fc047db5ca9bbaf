package database

import (
	"context"
	"testing"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(userID int64) *models.ExportJob {
	return &models.ExportJob{
		ID:     uuid.NewString(),
		UserID: userID,
		Format: models.FormatCSV,
	}
}

func TestCreateExportJob(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	job := newTestJob(10)
	err := db.CreateExportJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	got, err := db.GetExportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.UserID, got.UserID)
	assert.Equal(t, models.JobPending, got.Status)
}

func TestCreateExportJob_OneInFlightPerUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	first := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, first))

	// Вторая задача, пока первая в pending
	err := db.CreateExportJob(ctx, newTestJob(10))
	assert.ErrorIs(t, err, ErrExportInProgress)

	// И пока первая в processing
	require.NoError(t, db.MarkJobProcessing(ctx, first.ID))
	err = db.CreateExportJob(ctx, newTestJob(10))
	assert.ErrorIs(t, err, ErrExportInProgress)

	// Другому пользователю можно
	require.NoError(t, db.CreateExportJob(ctx, newTestJob(20)))

	// После завершения первой — снова можно
	require.NoError(t, db.CompleteJob(ctx, first.ID, "/tmp/a.csv", time.Now(), time.Now().Add(24*time.Hour)))
	require.NoError(t, db.CreateExportJob(ctx, newTestJob(10)))
}

func TestGetExportJob_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetExportJob(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestExportJobTransitions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	job := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, job))

	// pending -> processing только один раз
	require.NoError(t, db.MarkJobProcessing(ctx, job.ID))
	assert.ErrorIs(t, db.MarkJobProcessing(ctx, job.ID), ErrInvalidTransition)

	// processing -> completed
	completedAt := time.Now()
	expiresAt := completedAt.Add(24 * time.Hour)
	require.NoError(t, db.CompleteJob(ctx, job.ID, "/tmp/export.csv", completedAt, expiresAt))

	got, err := db.GetExportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, "/tmp/export.csv", got.ArtifactPath)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.IsTerminal())

	// Терминальный статус дальше не двигается
	assert.ErrorIs(t, db.CancelJob(ctx, job.ID), ErrInvalidTransition)
	assert.ErrorIs(t, db.FailJob(ctx, job.ID, "boom"), ErrInvalidTransition)
}

func TestCancelJob_WinsOverConcurrentComplete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	job := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, job))
	require.NoError(t, db.MarkJobProcessing(ctx, job.ID))

	// Пользователь отменяет, пока воркер пишет артефакт
	require.NoError(t, db.CancelJob(ctx, job.ID))

	// Воркер пытается зафиксировать готовый артефакт — и проигрывает
	err := db.CompleteJob(ctx, job.ID, "/tmp/export.csv", time.Now(), time.Now().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := db.GetExportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, got.Status)
	assert.Empty(t, got.ArtifactPath)
}

func TestFailJob(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	job := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, job))
	require.NoError(t, db.MarkJobProcessing(ctx, job.ID))
	require.NoError(t, db.FailJob(ctx, job.ID, "disk full"))

	got, err := db.GetExportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "disk full", got.ErrorMessage)
}

func TestGetExpiredCompletedJobs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	expired := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, expired))
	require.NoError(t, db.MarkJobProcessing(ctx, expired.ID))
	require.NoError(t, db.CompleteJob(ctx, expired.ID, "/tmp/old.csv", now.Add(-25*time.Hour), now.Add(-time.Hour)))

	fresh := newTestJob(20)
	require.NoError(t, db.CreateExportJob(ctx, fresh))
	require.NoError(t, db.MarkJobProcessing(ctx, fresh.ID))
	require.NoError(t, db.CompleteJob(ctx, fresh.ID, "/tmp/new.csv", now, now.Add(24*time.Hour)))

	got, err := db.GetExpiredCompletedJobs(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)

	// После очистки артефакта задача больше не попадает в выборку
	require.NoError(t, db.ClearArtifact(ctx, expired.ID))
	got, err = db.GetExpiredCompletedJobs(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetPendingExportJobs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	first := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, first))
	second := newTestJob(20)
	require.NoError(t, db.CreateExportJob(ctx, second))

	require.NoError(t, db.MarkJobProcessing(ctx, second.ID))

	pending, err := db.GetPendingExportJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
}

func TestGetUserExportJobs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	job := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, job))
	require.NoError(t, db.CreateExportJob(ctx, newTestJob(20)))

	jobs, err := db.GetUserExportJobs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestGetExportJobs_AdminFilter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	pending := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, pending))

	done := newTestJob(20)
	require.NoError(t, db.CreateExportJob(ctx, done))
	require.NoError(t, db.MarkJobProcessing(ctx, done.ID))
	require.NoError(t, db.CompleteJob(ctx, done.ID, "/tmp/a.csv", time.Now(), time.Now().Add(time.Hour)))

	all, total, err := db.GetExportJobs(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	completed, total, err := db.GetExportJobs(ctx, models.JobCompleted, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)
}

func TestFailOrphanedJobs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	stuck := newTestJob(10)
	require.NoError(t, db.CreateExportJob(ctx, stuck))
	require.NoError(t, db.MarkJobProcessing(ctx, stuck.ID))

	queued := newTestJob(20)
	require.NoError(t, db.CreateExportJob(ctx, queued))

	count, err := db.FailOrphanedJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := db.GetExportJob(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)

	// Pending-задачи не трогаем: их подберет воркер
	still, err := db.GetExportJob(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, still.Status)
}

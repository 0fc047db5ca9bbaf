package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/events"
	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ExportService struct {
	repo          domain.Storage
	scheduler     domain.ExportScheduler
	eventBus      domain.EventPublisher
	defaultFormat string
	logger        *zerolog.Logger
}

func NewExportService(repo domain.Storage, scheduler domain.ExportScheduler, eventBus domain.EventPublisher, defaultFormat string, logger *zerolog.Logger) *ExportService {
	if defaultFormat == "" {
		defaultFormat = models.FormatCSV
	}
	return &ExportService{
		repo:          repo,
		scheduler:     scheduler,
		eventBus:      eventBus,
		defaultFormat: defaultFormat,
		logger:        logger,
	}
}

// RequestExport creates a pending export job for the user's full
// reservation history and hands it to the worker. A user can have at
// most one job in flight.
func (s *ExportService) RequestExport(ctx context.Context, userID int64, format string) (*models.ExportJob, error) {
	if format == "" {
		format = s.defaultFormat
	}
	if format != models.FormatCSV && format != models.FormatXLSX {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    models.JobPending,
		Format:    format,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateExportJob(ctx, job); err != nil {
		return nil, err
	}
	metrics.IncExportJob(models.JobPending)

	if err := s.scheduler.Schedule(job.ID); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("schedule export error")
	}

	s.recordExportActivity(ctx, userID, models.ActivityExportRequested, job.ID)
	s.publishExportEvent(events.EventExportRequested, job, "")

	return job, nil
}

// Job returns one export job. Non-owners get ErrJobNotFound unless
// they are admins, so job IDs do not leak across users.
func (s *ExportService) Job(ctx context.Context, requesterID int64, isAdmin bool, jobID string) (*models.ExportJob, error) {
	job, err := s.repo.GetExportJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != requesterID && !isAdmin {
		return nil, database.ErrJobNotFound
	}
	return job, nil
}

// Download resolves the artifact path of a completed job. Expiry is
// checked against the wall clock on every call: once expires_at has
// passed the artifact is gone for the caller even if the sweeper has
// not removed the file yet.
func (s *ExportService) Download(ctx context.Context, requesterID int64, isAdmin bool, jobID string) (string, error) {
	job, err := s.Job(ctx, requesterID, isAdmin, jobID)
	if err != nil {
		return "", err
	}

	if job.Status != models.JobCompleted {
		return "", database.ErrNotReady
	}
	if job.IsExpiredAt(time.Now().UTC()) || job.ArtifactPath == "" {
		return "", database.ErrExpired
	}
	if _, err := os.Stat(job.ArtifactPath); err != nil {
		return "", database.ErrExpired
	}

	s.recordExportActivity(ctx, requesterID, models.ActivityExportDownloaded, job.ID)
	return job.ArtifactPath, nil
}

// Cancel moves a pending or processing job to cancelled. A job the
// worker already finished (or failed) stays as it is.
func (s *ExportService) Cancel(ctx context.Context, requesterID int64, isAdmin bool, jobID string) error {
	job, err := s.Job(ctx, requesterID, isAdmin, jobID)
	if err != nil {
		return err
	}

	if err := s.repo.CancelJob(ctx, job.ID); err != nil {
		return err
	}
	metrics.IncExportJob(models.JobCancelled)

	s.recordExportActivity(ctx, requesterID, models.ActivityExportCancelled, job.ID)
	s.publishExportEvent(events.EventExportCancelled, job, "")
	return nil
}

// History returns the user's recent export jobs as views with the
// derived is_expired flag.
func (s *ExportService) History(ctx context.Context, userID int64, limit int) ([]models.JobView, error) {
	jobs, err := s.repo.GetUserExportJobs(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]models.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.View(now))
	}
	return views, nil
}

// AdminList returns export jobs across all users with an optional
// status filter.
func (s *ExportService) AdminList(ctx context.Context, status string, page, perPage int) ([]models.JobView, int64, error) {
	jobs, total, err := s.repo.GetExportJobs(ctx, status, page, perPage)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	views := make([]models.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.View(now))
	}
	return views, total, nil
}

// SweepExpired deletes artifacts whose retention window has passed.
// The job rows stay for history; only the files and the path go.
func (s *ExportService) SweepExpired(ctx context.Context) (int, error) {
	jobs, err := s.repo.GetExpiredCompletedJobs(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, job := range jobs {
		if err := os.Remove(job.ArtifactPath); err != nil && !os.IsNotExist(err) {
			s.logger.Error().Err(err).Str("job_id", job.ID).Str("path", job.ArtifactPath).Msg("remove expired artifact error")
			continue
		}
		if err := s.repo.ClearArtifact(ctx, job.ID); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("clear artifact error")
			continue
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("Expired export artifacts swept")
	}
	return swept, nil
}

func (s *ExportService) recordExportActivity(ctx context.Context, userID int64, activityType, jobID string) {
	err := s.repo.RecordActivity(ctx, &models.Activity{
		UserID:    userID,
		Type:      activityType,
		Data:      fmt.Sprintf("job %s", jobID),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("type", activityType).Msg("record activity error")
	}
}

func (s *ExportService) publishExportEvent(eventType string, job *models.ExportJob, errorMessage string) {
	if s.eventBus == nil {
		return
	}
	payload := events.ExportEventPayload{
		JobID:  job.ID,
		UserID: job.UserID,
		Status: job.Status,
		Error:  errorMessage,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("job_id", job.ID).Msg("publish event error")
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/events"
	"github.com/adityar2309/Vehicle-Parking-App/internal/export"
	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// ExportWorker consumes queued export jobs, renders the reservation
// history artifact and drives the job through its status transitions.
// All transitions go through the conditional updates in the database
// layer, so a job cancelled mid-flight never turns completed.
type ExportWorker struct {
	db           domain.Storage
	events       domain.EventPublisher
	notifier     domain.Notifier
	retryPolicy  RetryPolicy
	queue        chan string
	exportPath   string
	retention    time.Duration
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger
}

// NewExportWorker builds a worker with sane defaults.
func NewExportWorker(db domain.Storage, bus domain.EventPublisher, notifier domain.Notifier, exportPath string, retention time.Duration, queueSize int, retry RetryPolicy, logger *log.Logger) *ExportWorker {
	if queueSize <= 0 {
		queueSize = models.ExportQueueSize
	}
	if retention <= 0 {
		retention = time.Duration(models.DefaultExportRetentionHours) * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}

	return &ExportWorker{
		db:           db,
		events:       bus,
		notifier:     notifier,
		retryPolicy:  retry.withDefaults(),
		queue:        make(chan string, queueSize),
		exportPath:   exportPath,
		retention:    retention,
		pollInterval: 2 * time.Second,
		batchSize:    20,
		logger:       logger,
	}
}

// Schedule hands a pending job to the worker. A full queue is not an
// error: the polling loop picks up pending jobs from the database.
func (w *ExportWorker) Schedule(jobID string) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	select {
	case w.queue <- jobID:
	default:
		w.logger.Printf("export_worker: queue full, job %s left to polling", jobID)
	}
	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *ExportWorker) Start(ctx context.Context) {
	w.logger.Printf("export_worker: started")
	defer w.logger.Printf("export_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if jobID, ok := w.tryQueue(); ok {
			w.processJob(ctx, jobID)
			continue
		}

		jobs, err := w.db.GetPendingExportJobs(ctx, w.batchSize)
		if err != nil {
			w.logger.Printf("export_worker: fetch pending: %v", err)
			w.sleep(ctx, w.pollInterval)
			continue
		}
		if len(jobs) == 0 {
			w.sleep(ctx, w.pollInterval)
			continue
		}

		for _, job := range jobs {
			w.processJob(ctx, job.ID)
		}
	}
}

func (w *ExportWorker) tryQueue() (string, bool) {
	select {
	case jobID := <-w.queue:
		return jobID, true
	default:
		return "", false
	}
}

func (w *ExportWorker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (w *ExportWorker) processJob(ctx context.Context, jobID string) {
	// Claim the job. A job cancelled while it sat in the queue fails
	// the pending->processing update and is simply skipped.
	if err := w.db.MarkJobProcessing(ctx, jobID); err != nil {
		if errors.Is(err, database.ErrInvalidTransition) || errors.Is(err, database.ErrJobNotFound) {
			return
		}
		w.logger.Printf("export_worker: claim job %s: %v", jobID, err)
		return
	}
	metrics.IncExportJob(models.JobProcessing)

	job, err := w.db.GetExportJob(ctx, jobID)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Errorf("load job: %w", err))
		return
	}

	artifactPath, err := w.produce(ctx, job)
	if err != nil {
		w.failJob(ctx, jobID, err)
		return
	}

	completedAt := time.Now().UTC()
	expiresAt := completedAt.Add(w.retention)
	if err := w.db.CompleteJob(ctx, jobID, artifactPath, completedAt, expiresAt); err != nil {
		// The user cancelled while we were writing. The artifact must
		// not outlive the job, so remove it.
		if errors.Is(err, database.ErrInvalidTransition) {
			if rmErr := os.Remove(artifactPath); rmErr != nil && !os.IsNotExist(rmErr) {
				w.logger.Printf("export_worker: remove artifact of cancelled job %s: %v", jobID, rmErr)
			}
			return
		}
		w.logger.Printf("export_worker: complete job %s: %v", jobID, err)
		return
	}
	metrics.IncExportJob(models.JobCompleted)

	if pubErr := w.events.PublishJSON(events.EventExportCompleted, events.ExportEventPayload{
		JobID:  jobID,
		UserID: job.UserID,
		Status: models.JobCompleted,
	}); pubErr != nil {
		w.logger.Printf("export_worker: publish completed %s: %v", jobID, pubErr)
	}
	w.notifyUser(ctx, job.UserID, "✅ Your parking history export is ready for download.")
}

// produce renders the artifact, retrying transient write failures.
func (w *ExportWorker) produce(ctx context.Context, job *models.ExportJob) (string, error) {
	writer, err := export.WriterFor(job.Format)
	if err != nil {
		return "", err
	}

	reservations, err := w.db.GetAllUserReservations(ctx, job.UserID)
	if err != nil {
		return "", fmt.Errorf("load reservations: %w", err)
	}

	if err := os.MkdirAll(w.exportPath, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	artifactPath := filepath.Join(w.exportPath, fmt.Sprintf("export_%s.%s", job.ID, writer.Extension()))

	var lastErr error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if lastErr = writer.Write(artifactPath, reservations); lastErr == nil {
			return artifactPath, nil
		}
		w.logger.Printf("export_worker: write artifact %s attempt %d: %v", job.ID, attempt, lastErr)
		if attempt < w.retryPolicy.MaxRetries {
			w.sleep(ctx, w.retryPolicy.NextDelay(attempt))
		}
	}
	return "", fmt.Errorf("write artifact: %w", lastErr)
}

func (w *ExportWorker) failJob(ctx context.Context, jobID string, cause error) {
	w.logger.Printf("export_worker: job %s failed: %v", jobID, cause)
	if err := w.db.FailJob(ctx, jobID, cause.Error()); err != nil {
		// Cancellation beat us to the terminal state, nothing to do.
		if errors.Is(err, database.ErrInvalidTransition) {
			return
		}
		w.logger.Printf("export_worker: mark failed %s: %v", jobID, err)
		return
	}
	metrics.IncExportJob(models.JobFailed)

	job, err := w.db.GetExportJob(ctx, jobID)
	if err != nil {
		return
	}
	if pubErr := w.events.PublishJSON(events.EventExportFailed, events.ExportEventPayload{
		JobID:  jobID,
		UserID: job.UserID,
		Status: models.JobFailed,
		Error:  cause.Error(),
	}); pubErr != nil {
		w.logger.Printf("export_worker: publish failed %s: %v", jobID, pubErr)
	}
	w.notifyUser(ctx, job.UserID, "❌ Your parking history export failed. Please try again later.")
}

func (w *ExportWorker) notifyUser(ctx context.Context, userID int64, message string) {
	if w.notifier == nil {
		return
	}
	user, err := w.db.GetUser(ctx, userID)
	if err != nil || user.ChatID == 0 {
		return
	}
	if err := w.notifier.Notify(ctx, user.ChatID, message); err != nil {
		w.logger.Printf("export_worker: notify user %d: %v", userID, err)
	}
}

package domain

import (
	"context"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

// SpotLedger is the single authority over spot occupancy.
type SpotLedger interface {
	ClaimSpot(ctx context.Context, lotID int64) (*models.Spot, error)
	ReleaseSpot(ctx context.Context, spotID int64) error
	OccupancyView(ctx context.Context, lotID int64) (*models.OccupancyView, error)
}

// Storage is the persistence surface consumed by the services.
type Storage interface {
	SpotLedger

	GetLot(lotID int64) (models.Lot, bool)
	GetLots() []models.Lot
	GetLotsWithAvailability(ctx context.Context) ([]models.LotAvailability, error)

	BookReservationWithLock(ctx context.Context, res *models.Reservation) error
	CloseReservation(ctx context.Context, reservationID int64, endedAt time.Time, cost float64) error
	GetOpenReservation(ctx context.Context, userID int64) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetUserReservations(ctx context.Context, userID int64, page, perPage int) (*models.ReservationPage, error)
	GetAllUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error)
	GetClosedReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	GetDashboardStats(ctx context.Context, userID int64) (*models.DashboardStats, error)

	CreateExportJob(ctx context.Context, job *models.ExportJob) error
	GetExportJob(ctx context.Context, jobID string) (*models.ExportJob, error)
	MarkJobProcessing(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID, artifactPath string, completedAt, expiresAt time.Time) error
	FailJob(ctx context.Context, jobID, errorMessage string) error
	CancelJob(ctx context.Context, jobID string) error
	ClearArtifact(ctx context.Context, jobID string) error
	GetExpiredCompletedJobs(ctx context.Context, now time.Time) ([]*models.ExportJob, error)
	GetPendingExportJobs(ctx context.Context, limit int) ([]*models.ExportJob, error)
	GetUserExportJobs(ctx context.Context, userID int64, limit int) ([]*models.ExportJob, error)
	GetExportJobs(ctx context.Context, status string, page, perPage int) ([]*models.ExportJob, int64, error)

	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID int64) error
	TouchLastBooking(ctx context.Context, userID int64) error
	GetInactiveUsers(ctx context.Context, loginCutoff, bookingCutoff time.Time) ([]*models.User, error)

	RecordActivity(ctx context.Context, activity *models.Activity) error
	GetUserActivities(ctx context.Context, userID int64, activityType string, limit int) ([]*models.Activity, error)
}

// ViewCache memoizes read-heavy aggregate views. Values are opaque JSON.
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier is the fire-and-forget notify(user, message) capability
// provided by the messaging collaborator.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, message string) error
}

// ExportScheduler hands a pending job to the async producer.
type ExportScheduler interface {
	Schedule(jobID string) error
}

// ArtifactWriter serializes a reservation history into a downloadable file.
type ArtifactWriter interface {
	Write(path string, reservations []*models.Reservation) error
	Extension() string
}

package service

import (
	"context"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.Storage
	logger *zerolog.Logger
}

func NewUserService(repo domain.Storage, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// EnsureUser upserts the request identity and stamps last_login.
func (s *UserService) EnsureUser(ctx context.Context, user *models.User) error {
	if user.Role != models.RoleAdmin {
		user.Role = models.RoleUser
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return err
	}
	return s.repo.TouchLastLogin(ctx, user.ID)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// InactiveUsers returns users who have neither logged in nor booked
// recently. Only users with a linked chat are returned since the
// reminder has nowhere else to go.
func (s *UserService) InactiveUsers(ctx context.Context) ([]*models.User, error) {
	now := time.Now().UTC()
	loginCutoff := now.AddDate(0, 0, -models.ReminderLoginDays)
	bookingCutoff := now.AddDate(0, 0, -models.ReminderBookingDays)
	return s.repo.GetInactiveUsers(ctx, loginCutoff, bookingCutoff)
}

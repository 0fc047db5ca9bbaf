package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/events"
	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/rs/zerolog"
)

type ReservationService struct {
	repo     domain.Storage
	cache    domain.ViewCache
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReservationService(repo domain.Storage, cache domain.ViewCache, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		repo:     repo,
		cache:    cache,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CalculateCost bills whole hours, rounding the duration up. Any
// reservation shorter than an hour is billed as one full hour. The
// result is rounded to cents.
func CalculateCost(startedAt, endedAt time.Time, ratePerHour float64) float64 {
	hours := math.Ceil(endedAt.Sub(startedAt).Hours())
	if hours < 1 {
		hours = 1
	}
	return math.Round(hours*ratePerHour*100) / 100
}

// Book claims the lowest-numbered free spot in the lot and opens a
// reservation on it. A user can hold at most one open reservation.
func (s *ReservationService) Book(ctx context.Context, userID, lotID int64, vehicleNumber string) (*models.Reservation, error) {
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	if vehicleNumber == "" {
		metrics.IncBooking("error")
		return nil, database.ErrInvalidVehicleNumber
	}

	lot, ok := s.repo.GetLot(lotID)
	if !ok {
		metrics.IncBooking("error")
		return nil, database.ErrLotNotFound
	}

	res := &models.Reservation{
		UserID:        userID,
		LotID:         lot.ID,
		LotName:       lot.Name,
		VehicleNumber: vehicleNumber,
		StartedAt:     time.Now().UTC(),
		Status:        models.ReservationOpen,
	}

	if err := s.repo.BookReservationWithLock(ctx, res); err != nil {
		switch {
		case err == database.ErrNoCapacity || err == database.ErrDuplicateActiveReservation:
			metrics.IncBooking(bookingOutcome(err))
		default:
			metrics.IncBooking("error")
		}
		return nil, err
	}
	metrics.IncBooking("created")

	if err := s.repo.TouchLastBooking(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("touch last booking error")
	}
	s.recordActivity(ctx, userID, models.ActivityBookingCreated,
		fmt.Sprintf("booked spot %d at %s", res.SpotNumber, lot.Name))
	s.publishReservationEvent(events.EventReservationCreated, res)
	s.invalidateViews(ctx, userID, lot.ID)

	return res, nil
}

// Release closes the caller's open reservation, frees the spot and
// bills the stay.
func (s *ReservationService) Release(ctx context.Context, userID int64) (*models.Reservation, error) {
	res, err := s.repo.GetOpenReservation(ctx, userID)
	if err != nil {
		if err == database.ErrNoActiveReservation {
			metrics.IncRelease("none")
		} else {
			metrics.IncRelease("error")
		}
		return nil, err
	}

	lot, ok := s.repo.GetLot(res.LotID)
	if !ok {
		metrics.IncRelease("error")
		return nil, database.ErrLotNotFound
	}

	endedAt := time.Now().UTC()
	cost := CalculateCost(res.StartedAt, endedAt, lot.RatePerHour)

	if err := s.repo.CloseReservation(ctx, res.ID, endedAt, cost); err != nil {
		if err == database.ErrNoActiveReservation {
			metrics.IncRelease("none")
		} else {
			metrics.IncRelease("error")
		}
		return nil, err
	}
	metrics.IncRelease("closed")
	metrics.AddRevenue(cost)

	res.EndedAt = &endedAt
	res.Cost = &cost
	res.Status = models.ReservationClosed

	s.recordActivity(ctx, userID, models.ActivityBookingCompleted,
		fmt.Sprintf("released spot %d at %s, cost %.2f", res.SpotNumber, lot.Name, cost))
	s.publishReservationEvent(events.EventReservationClosed, res)
	s.invalidateViews(ctx, userID, res.LotID)

	return res, nil
}

// CurrentReservation returns the user's open reservation, if any.
func (s *ReservationService) CurrentReservation(ctx context.Context, userID int64) (*models.Reservation, error) {
	return s.repo.GetOpenReservation(ctx, userID)
}

// History returns one page of the user's reservation history. The
// first page at default size is the hot path and is served from cache.
func (s *ReservationService) History(ctx context.Context, userID int64, page, perPage int) (*models.ReservationPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = models.DefaultPaginationSize
	}
	if perPage > models.MaxPaginationSize {
		perPage = models.MaxPaginationSize
	}

	cacheable := page == 1 && perPage == models.DefaultPaginationSize
	key := reservationsCacheKey(userID)
	if cacheable {
		var cached models.ReservationPage
		if s.cacheGet(ctx, key, &cached) {
			return &cached, nil
		}
	}

	result, err := s.repo.GetUserReservations(ctx, userID, page, perPage)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cacheSet(ctx, key, result, time.Duration(models.ReservationsCacheTTL)*time.Second)
	}
	return result, nil
}

// Dashboard aggregates the user's parking stats, cached per user.
func (s *ReservationService) Dashboard(ctx context.Context, userID int64) (*models.DashboardStats, error) {
	key := dashboardCacheKey(userID)
	var cached models.DashboardStats
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.GetDashboardStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.LotsCount = int64(len(s.repo.GetLots()))

	s.cacheSet(ctx, key, stats, time.Duration(models.DashboardCacheTTL)*time.Second)
	return stats, nil
}

// Lots returns all lots with live availability, cached.
func (s *ReservationService) Lots(ctx context.Context) ([]models.LotAvailability, error) {
	var cached []models.LotAvailability
	if s.cacheGet(ctx, lotsCacheKey, &cached) {
		return cached, nil
	}

	lots, err := s.repo.GetLotsWithAvailability(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, lotsCacheKey, lots, time.Duration(models.LotsCacheTTL)*time.Second)
	return lots, nil
}

// Occupancy returns the availability counters of one lot, cached.
func (s *ReservationService) Occupancy(ctx context.Context, lotID int64) (*models.OccupancyView, error) {
	key := occupancyCacheKey(lotID)
	var cached models.OccupancyView
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	view, err := s.repo.OccupancyView(ctx, lotID)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, view, time.Duration(models.OccupancyCacheTTL)*time.Second)
	return view, nil
}

// Activities returns the user's recent activity log.
func (s *ReservationService) Activities(ctx context.Context, userID int64, activityType string, limit int) ([]*models.Activity, error) {
	return s.repo.GetUserActivities(ctx, userID, activityType, limit)
}

const lotsCacheKey = "views:lots"

func occupancyCacheKey(lotID int64) string {
	return fmt.Sprintf("views:occupancy:%d", lotID)
}

func dashboardCacheKey(userID int64) string {
	return fmt.Sprintf("views:dashboard:%d", userID)
}

func reservationsCacheKey(userID int64) string {
	return fmt.Sprintf("views:reservations:%d:p1", userID)
}

// invalidateViews drops every cached view a booking or release makes
// stale. Readers repopulate on the next request.
func (s *ReservationService) invalidateViews(ctx context.Context, userID, lotID int64) {
	if s.cache == nil {
		return
	}
	err := s.cache.Delete(ctx,
		occupancyCacheKey(lotID),
		lotsCacheKey,
		dashboardCacheKey(userID),
		reservationsCacheKey(userID),
	)
	if err != nil {
		s.logger.Error().Err(err).Int64("lot_id", lotID).Int64("user_id", userID).Msg("cache invalidation error")
	}
}

func (s *ReservationService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("cache get error")
		return false
	}
	if raw == nil {
		metrics.IncCache("miss")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("cache decode error")
		return false
	}
	metrics.IncCache("hit")
	return true
}

func (s *ReservationService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("cache encode error")
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("cache set error")
	}
}

func (s *ReservationService) recordActivity(ctx context.Context, userID int64, activityType, data string) {
	err := s.repo.RecordActivity(ctx, &models.Activity{
		UserID:    userID,
		Type:      activityType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("type", activityType).Msg("record activity error")
	}
}

func (s *ReservationService) publishReservationEvent(eventType string, res *models.Reservation) {
	if s.eventBus == nil {
		return
	}
	payload := events.ReservationEventPayload{
		ReservationID: res.ID,
		UserID:        res.UserID,
		LotID:         res.LotID,
		LotName:       res.LotName,
		SpotNumber:    res.SpotNumber,
		VehicleNumber: res.VehicleNumber,
		Status:        res.Status,
		StartedAt:     res.StartedAt,
	}
	if res.Cost != nil {
		payload.Cost = *res.Cost
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", res.ID).Msg("publish event error")
	}
}

func bookingOutcome(err error) string {
	switch err {
	case database.ErrNoCapacity:
		return "no_capacity"
	case database.ErrDuplicateActiveReservation:
		return "duplicate"
	default:
		return "error"
	}
}

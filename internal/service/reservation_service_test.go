package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/events"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
	"github.com/adityar2309/Vehicle-Parking-App/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReservationService(t *testing.T) (*ReservationService, *database.DB) {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = db.SetLots(context.Background(), []models.Lot{
		{ID: 1, Name: "Downtown Garage", RatePerHour: 5.0, TotalSpots: 3},
		{ID: 2, Name: "Airport Lot", RatePerHour: 8.5, TotalSpots: 1},
	})
	require.NoError(t, err)

	svc := NewReservationService(db, repository.NewMemoryViewCache(), events.NewEventBus(), &logger)
	return svc, db
}

func TestCalculateCost(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		rate     float64
		want     float64
	}{
		{"ninety minutes rounds up to two hours", 90 * time.Minute, 5.0, 10.0},
		{"five minutes bills one full hour", 5 * time.Minute, 5.0, 5.0},
		{"zero duration bills one full hour", 0, 5.0, 5.0},
		{"exactly one hour", time.Hour, 5.0, 5.0},
		{"one hour one second rounds up", time.Hour + time.Second, 5.0, 10.0},
		{"exactly two hours", 2 * time.Hour, 8.5, 17.0},
		{"fractional rate rounds to cents", time.Hour, 7.333, 7.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(base, base.Add(tt.duration), tt.rate)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestReservationService_BookAndRelease(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	res, err := svc.Book(ctx, 10, 1, "KA-01-AB-1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SpotNumber)
	assert.Equal(t, models.ReservationOpen, res.Status)

	current, err := svc.CurrentReservation(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, res.ID, current.ID)

	closed, err := svc.Release(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationClosed, closed.Status)
	require.NotNil(t, closed.Cost)
	// Мгновенный release — минимум один час по тарифу 5.0
	assert.InDelta(t, 5.0, *closed.Cost, 0.0001)

	_, err = svc.CurrentReservation(ctx, 10)
	assert.ErrorIs(t, err, database.ErrNoActiveReservation)
}

func TestReservationService_BookErrors(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, 10, 99, "AA")
	assert.ErrorIs(t, err, database.ErrLotNotFound)

	_, err = svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)

	_, err = svc.Book(ctx, 10, 2, "AA")
	assert.ErrorIs(t, err, database.ErrDuplicateActiveReservation)

	_, err = svc.Book(ctx, 20, 2, "BB")
	require.NoError(t, err)
	_, err = svc.Book(ctx, 30, 2, "CC")
	assert.ErrorIs(t, err, database.ErrNoCapacity)
}

func TestReservationService_BookEmptyVehicleNumber(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, 10, 1, "")
	assert.ErrorIs(t, err, database.ErrInvalidVehicleNumber)

	_, err = svc.Book(ctx, 10, 1, "   ")
	assert.ErrorIs(t, err, database.ErrInvalidVehicleNumber)

	// Пустой номер не должен занимать место
	res, err := svc.Book(ctx, 10, 1, "KA-01-AB-1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SpotNumber)
}

func TestReservationService_ReleaseWithoutReservation(t *testing.T) {
	svc, _ := setupReservationService(t)

	_, err := svc.Release(context.Background(), 10)
	assert.ErrorIs(t, err, database.ErrNoActiveReservation)
}

func TestReservationService_OccupancyCacheInvalidation(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	before, err := svc.Occupancy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), before.Available)

	// Бронирование должно сбросить кэшированное представление
	_, err = svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)

	after, err := svc.Occupancy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Available)
	assert.Equal(t, int64(1), after.Occupied)
}

func TestReservationService_LotsCacheInvalidation(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	lots, err := svc.Lots(ctx)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	_, err = svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)

	lots, err = svc.Lots(ctx)
	require.NoError(t, err)
	for _, lot := range lots {
		if lot.ID == 1 {
			assert.Equal(t, int64(1), lot.OccupiedSpots)
		}
	}
}

func TestReservationService_HistoryFirstPageCached(t *testing.T) {
	svc, db := setupReservationService(t)
	ctx := context.Background()

	res, err := svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)
	_, err = svc.Release(ctx, 10)
	require.NoError(t, err)

	page, err := svc.History(ctx, 10, 1, models.DefaultPaginationSize)
	require.NoError(t, err)
	require.Len(t, page.Reservations, 1)
	assert.Equal(t, res.ID, page.Reservations[0].ID)

	// Пишем мимо сервиса: кэш первой страницы этого не видит
	extra := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "BB"}
	require.NoError(t, db.BookReservationWithLock(ctx, extra))

	cached, err := svc.History(ctx, 10, 1, models.DefaultPaginationSize)
	require.NoError(t, err)
	assert.Len(t, cached.Reservations, 1, "first page should come from cache")

	// Нестандартный размер страницы идет мимо кэша
	fresh, err := svc.History(ctx, 10, 1, 50)
	require.NoError(t, err)
	assert.Len(t, fresh.Reservations, 2)
}

func TestReservationService_Dashboard(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)
	_, err = svc.Release(ctx, 10)
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalReservations)
	assert.Equal(t, int64(1), stats.CompletedReservations)
	assert.Equal(t, int64(2), stats.LotsCount)
	assert.InDelta(t, 5.0, stats.TotalSpent, 0.0001)
}

func TestReservationService_ActivityTrail(t *testing.T) {
	svc, _ := setupReservationService(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, 10, 1, "AA")
	require.NoError(t, err)
	_, err = svc.Release(ctx, 10)
	require.NoError(t, err)

	activities, err := svc.Activities(ctx, 10, "", 0)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	// Новые записи первыми
	assert.Equal(t, models.ActivityBookingCompleted, activities[0].Type)
	assert.Equal(t, models.ActivityBookingCreated, activities[1].Type)
}

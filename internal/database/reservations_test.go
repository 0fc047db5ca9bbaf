package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)

	err = db.SetLots(context.Background(), []models.Lot{
		{ID: 1, Name: "Downtown Garage", Address: "1 Main St", PinCode: "560001", RatePerHour: 5.0, TotalSpots: 3},
		{ID: 2, Name: "Airport Lot", Address: "2 Terminal Rd", PinCode: "560017", RatePerHour: 8.5, TotalSpots: 1},
	})
	require.NoError(t, err)
	return db
}

func TestBookReservationWithLock(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	res := &models.Reservation{
		UserID:        10,
		LotID:         1,
		VehicleNumber: "KA-01-AB-1234",
	}
	err := db.BookReservationWithLock(ctx, res)
	require.NoError(t, err)

	assert.NotZero(t, res.ID)
	assert.NotZero(t, res.SpotID)
	assert.Equal(t, int64(1), res.SpotNumber, "lowest numbered spot should be claimed first")
	assert.Equal(t, "Downtown Garage", res.LotName)
	assert.Equal(t, models.ReservationOpen, res.Status)

	spot, err := db.GetSpot(ctx, res.SpotID)
	require.NoError(t, err)
	assert.Equal(t, models.SpotOccupied, spot.Status)
}

func TestBookReservationWithLock_DuplicateActive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	first := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "KA-01-AB-1234"}
	require.NoError(t, db.BookReservationWithLock(ctx, first))

	// Второе открытое бронирование того же пользователя, даже в другой парковке
	second := &models.Reservation{UserID: 10, LotID: 2, VehicleNumber: "KA-01-AB-1234"}
	err := db.BookReservationWithLock(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateActiveReservation)

	// Место в другой парковке не должно быть захвачено
	view, err := db.OccupancyView(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Occupied)
}

func TestBookReservationWithLock_NoCapacity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// Airport Lot has 1 spot
	first := &models.Reservation{UserID: 1, LotID: 2, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, first))

	second := &models.Reservation{UserID: 2, LotID: 2, VehicleNumber: "BB"}
	err := db.BookReservationWithLock(ctx, second)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestBookReservationWithLock_UnknownLot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	res := &models.Reservation{UserID: 1, LotID: 99, VehicleNumber: "AA"}
	err := db.BookReservationWithLock(context.Background(), res)
	assert.ErrorIs(t, err, ErrLotNotFound)
}

func TestBookReservationWithLock_ReleasedSpotIsReusedLowestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// Занимаем места 1 и 2
	first := &models.Reservation{UserID: 1, LotID: 1, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, first))
	second := &models.Reservation{UserID: 2, LotID: 1, VehicleNumber: "BB"}
	require.NoError(t, db.BookReservationWithLock(ctx, second))

	// Освобождаем место 1
	require.NoError(t, db.CloseReservation(ctx, first.ID, time.Now(), 5.0))

	third := &models.Reservation{UserID: 3, LotID: 1, VehicleNumber: "CC"}
	require.NoError(t, db.BookReservationWithLock(ctx, third))
	assert.Equal(t, int64(1), third.SpotNumber)
}

func TestCloseReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	res := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, res))

	endedAt := time.Now().Add(90 * time.Minute)
	err := db.CloseReservation(ctx, res.ID, endedAt, 10.0)
	require.NoError(t, err)

	got, err := db.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationClosed, got.Status)
	require.NotNil(t, got.Cost)
	assert.InDelta(t, 10.0, *got.Cost, 0.001)
	require.NotNil(t, got.EndedAt)

	// Место освобождено в той же транзакции
	spot, err := db.GetSpot(ctx, res.SpotID)
	require.NoError(t, err)
	assert.Equal(t, models.SpotAvailable, spot.Status)

	// Повторное закрытие не проходит
	err = db.CloseReservation(ctx, res.ID, endedAt, 10.0)
	assert.ErrorIs(t, err, ErrNoActiveReservation)
}

func TestGetOpenReservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := db.GetOpenReservation(ctx, 10)
	assert.ErrorIs(t, err, ErrNoActiveReservation)

	res := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, res))

	got, err := db.GetOpenReservation(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	assert.True(t, got.IsOpen())
}

func TestGetUserReservations_Pagination(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// 5 закрытых бронирований одного пользователя
	for i := 0; i < 5; i++ {
		res := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
		require.NoError(t, db.BookReservationWithLock(ctx, res))
		require.NoError(t, db.CloseReservation(ctx, res.ID, time.Now(), 5.0))
	}

	page, err := db.GetUserReservations(ctx, 10, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Reservations, 2)
	assert.Equal(t, int64(5), page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.Pages)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)

	last, err := db.GetUserReservations(ctx, 10, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last.Reservations, 1)
	assert.False(t, last.Pagination.HasNext)
	assert.True(t, last.Pagination.HasPrev)
}

func TestGetDashboardStats(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// Два закрытых + одно открытое
	for i := 0; i < 2; i++ {
		res := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
		require.NoError(t, db.BookReservationWithLock(ctx, res))
		require.NoError(t, db.CloseReservation(ctx, res.ID, time.Now(), 5.0))
	}
	open := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, open))

	stats, err := db.GetDashboardStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalReservations)
	assert.Equal(t, int64(2), stats.CompletedReservations)
	assert.Equal(t, int64(1), stats.ActiveReservations)
	assert.InDelta(t, 10.0, stats.TotalSpent, 0.001)
	assert.Equal(t, "Downtown Garage", stats.MostUsedLot)
	require.NotNil(t, stats.CurrentReservation)
	assert.Equal(t, open.ID, stats.CurrentReservation.ID)
}

func TestGetClosedReservationsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	res := &models.Reservation{UserID: 10, LotID: 1, VehicleNumber: "AA"}
	require.NoError(t, db.BookReservationWithLock(ctx, res))
	endedAt := time.Now()
	require.NoError(t, db.CloseReservation(ctx, res.ID, endedAt, 5.0))

	got, err := db.GetClosedReservationsByDateRange(ctx, endedAt.Add(-time.Hour), endedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.ID, got[0].ID)

	none, err := db.GetClosedReservationsByDateRange(ctx, endedAt.Add(time.Hour), endedAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

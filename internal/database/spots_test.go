package database

import (
	"context"
	"testing"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLots_ProvisionsSpots(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	view, err := db.OccupancyView(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Total)
	assert.Equal(t, int64(3), view.Available)
	assert.Equal(t, int64(0), view.Occupied)

	// Повторный вызов идемпотентен
	err = db.SetLots(ctx, []models.Lot{
		{ID: 1, Name: "Downtown Garage", RatePerHour: 5.0, TotalSpots: 3},
	})
	require.NoError(t, err)

	view, err = db.OccupancyView(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Total)
}

func TestClaimSpot_LowestNumberFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	first, err := db.ClaimSpot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.SpotNumber)
	assert.Equal(t, models.SpotOccupied, first.Status)

	second, err := db.ClaimSpot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.SpotNumber)
}

func TestClaimSpot_NoCapacity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := db.ClaimSpot(ctx, 2)
	require.NoError(t, err)

	_, err = db.ClaimSpot(ctx, 2)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestClaimSpot_UnknownLot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.ClaimSpot(context.Background(), 42)
	assert.ErrorIs(t, err, ErrLotNotFound)
}

func TestReleaseSpot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	spot, err := db.ClaimSpot(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, db.ReleaseSpot(ctx, spot.ID))

	got, err := db.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SpotAvailable, got.Status)
}

func TestGetLotsWithAvailability(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := db.ClaimSpot(ctx, 1)
	require.NoError(t, err)

	lots, err := db.GetLotsWithAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	byID := make(map[int64]models.LotAvailability, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}
	assert.Equal(t, int64(2), byID[1].AvailableSpots)
	assert.Equal(t, int64(1), byID[1].OccupiedSpots)
	assert.Equal(t, int64(1), byID[2].AvailableSpots)
}

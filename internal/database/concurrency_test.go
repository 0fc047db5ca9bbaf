package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBooking_ExactlyCapacityWins(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	const capacity = 3
	err = db.SetLots(ctx, []models.Lot{
		{ID: 1, Name: "Small Lot", RatePerHour: 5.0, TotalSpots: capacity},
	})
	require.NoError(t, err)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			res := &models.Reservation{
				UserID:        int64(id + 1),
				LotID:         1,
				VehicleNumber: fmt.Sprintf("KA-01-%04d", id),
			}
			results <- db.BookReservationWithLock(ctx, res)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	noCapacityCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case err == ErrNoCapacity:
			noCapacityCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, capacity, successCount, "exactly capacity bookings should succeed")
	assert.Equal(t, numGoroutines-capacity, noCapacityCount)

	view, err := db.OccupancyView(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(capacity), view.Occupied)
	assert.Equal(t, int64(0), view.Available)

	// Никакое место не захвачено дважды
	rows, err := db.QueryContext(ctx,
		`SELECT spot_id, COUNT(*) FROM reservations WHERE status = 'open' GROUP BY spot_id HAVING COUNT(*) > 1`)
	require.NoError(t, err)
	defer rows.Close()
	assert.False(t, rows.Next(), "no spot should back two open reservations")
	require.NoError(t, rows.Err())
}

func TestConcurrentReleaseAndBook(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "churn.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SetLots(ctx, []models.Lot{
		{ID: 1, Name: "Churn Lot", RatePerHour: 5.0, TotalSpots: 2},
	}))

	// Каждый из пользователей несколько раз бронирует и освобождает
	const numUsers = 6
	const rounds = 5

	var wg sync.WaitGroup
	wg.Add(numUsers)
	for u := 0; u < numUsers; u++ {
		go func(userID int64) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				res := &models.Reservation{UserID: userID, LotID: 1, VehicleNumber: "AA"}
				if err := db.BookReservationWithLock(ctx, res); err != nil {
					continue
				}
				_ = db.CloseReservation(ctx, res.ID, time.Now(), 5.0)
			}
		}(int64(u + 1))
	}
	wg.Wait()

	// Все закрыто — все места снова свободны
	view, err := db.OccupancyView(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Available)
	assert.Equal(t, int64(0), view.Occupied)
}

package services

import (
	"context"
	"testing"

	"github.com/farellandr/aquapark/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	f.seedDate(t, "2025-06-01", 10, 8)
	f.seedDate(t, "2025-04-01", 10, 0)
	require.NoError(t, f.db.Create(&models.TicketAvailability{Date: "2025-06-02", TotalTickets: 10}).Error)

	tests := []struct {
		name      string
		date      string
		quantity  int
		available bool
		remaining int
	}{
		{"fits", "2025-06-01", 2, true, 2},
		{"too many", "2025-06-01", 3, false, 2},
		{"unknown date", "2025-07-01", 1, false, 0},
		{"inactive date", "2025-06-02", 1, false, 0},
		{"past date", "2025-04-01", 1, false, 0},
		{"malformed date", "06/01/2025", 1, false, 0},
		{"zero quantity", "2025-06-01", 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.availability.CheckAvailability(context.Background(), tt.date, tt.quantity)
			require.NoError(t, err)
			assert.Equal(t, tt.available, res.Available)
			assert.Equal(t, tt.remaining, res.Remaining)
			if !tt.available {
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}

func TestCheckAvailabilityDoesNotReserve(t *testing.T) {
	f := newFixture(t)
	f.seedDate(t, "2025-06-01", 10, 8)

	for i := 0; i < 3; i++ {
		res, err := f.availability.CheckAvailability(context.Background(), "2025-06-01", 2)
		require.NoError(t, err)
		assert.True(t, res.Available)
	}
	assert.Equal(t, 8, f.sold(t, "2025-06-01"))
}

func TestListActiveDates(t *testing.T) {
	f := newFixture(t)
	f.seedDate(t, "2025-06-03", 10, 4)
	f.seedDate(t, "2025-06-01", 10, 10)
	f.seedDate(t, "2025-04-30", 10, 0)
	f.seedDate(t, "2025-06-02", 5, 0)

	dates, err := f.availability.ListActiveDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DateRemaining{
		{Date: "2025-06-02", Remaining: 5},
		{Date: "2025-06-03", Remaining: 6},
	}, dates)
}

func TestAvailabilityAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.availability.Create(ctx, "2025-06-01", 10)
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = f.availability.Create(ctx, "2025-06-01", 5)
	assert.ErrorIs(t, err, models.ErrDateExists)
	_, err = f.availability.Create(ctx, "2025-06-02", -1)
	assert.ErrorIs(t, err, models.ErrInvalidCapacity)
	_, err = f.availability.Create(ctx, "tomorrow", 5)
	assert.ErrorIs(t, err, models.ErrInvalidDate)

	require.NoError(t, f.ledgerRepo.Reserve(ctx, "2025-06-01", 6))

	total := 4
	_, err = f.availability.Update(ctx, "2025-06-01", &total, nil)
	assert.ErrorIs(t, err, models.ErrCapacityBelowSold)

	total = 6
	inactive := false
	updated, err := f.availability.Update(ctx, "2025-06-01", &total, &inactive)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.TotalTickets)
	assert.False(t, updated.IsActive)

	require.NoError(t, f.ledgerRepo.Release(ctx, "2025-06-01", 6))
	require.NoError(t, f.availability.Delete(ctx, "2025-06-01"))
	_, err = f.availability.Get(ctx, "2025-06-01")
	assert.ErrorIs(t, err, models.ErrDateNotFound)
}

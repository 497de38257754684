package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/cache"
	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/service"
)

func TestWritesSeeShowChangesThroughTheCache(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	log, _ := test.NewNullLogger()
	clk := clock.NewManual(start)
	shows := service.NewShows(store, cache.NewMemory[model.Show](clk), time.Minute, log)
	deps := service.Deps{Store: store, Shows: shows, Clock: clk, Log: log}
	limits := service.Limits{ReservationTTL: 5 * time.Minute, MaxExtensions: 2, MaxSeatsPerBooking: 6}
	inv := service.NewInventory(deps)
	reservations := service.NewReservations(deps, inv, limits)
	bookings := service.NewBookings(deps, inv, reservations, defaultPolicy(t), limits)

	_, err := inv.GetLayout(ctx, showID)
	require.NoError(t, err)

	withdrawn, err := store.GetShow(ctx, showID)
	require.NoError(t, err)
	withdrawn.IsActive = false
	store.AddShow(withdrawn, nil)

	cached, err := shows.Get(ctx, showID)
	require.NoError(t, err)
	assert.True(t, cached.IsActive, "reads may serve the cached copy")

	_, err = reservations.Create(ctx, service.HoldRequest{ShowID: showID, SeatIDs: []uint64{1}, HolderID: alice})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = bookings.Commit(ctx, service.CommitRequest{
		Source:     service.DirectSource{ShowID: showID},
		SeatIDs:    []uint64{2},
		HolderID:   alice,
		Passengers: passengers(1),
		Contact:    contact(),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	refreshed, err := shows.Get(ctx, showID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsActive)

	seats, err := store.GetSeats(ctx, showID, []uint64{1, 2})
	require.NoError(t, err)
	for _, seat := range seats {
		assert.Equal(t, model.SeatAvailable, seat.Status)
	}
}

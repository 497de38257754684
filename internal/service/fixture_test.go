package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/refund"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/repository/memory"
	"github.com/iliyamo/seat-booking/internal/service"
)

const (
	showID    uint64 = 7
	basePrice int64  = 1000
	alice            = "alice"
	bob              = "bob"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	cancelled []queue.BookingCancelledEvent
	expired   []queue.ReservationExpiredEvent
}

func (r *recorder) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, ev)
	return nil
}

func (r *recorder) PublishBookingCancelled(_ context.Context, ev queue.BookingCancelledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, ev)
	return nil
}

func (r *recorder) PublishReservationExpired(_ context.Context, ev queue.ReservationExpiredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, ev)
	return nil
}

func (r *recorder) counts() (confirmed, cancelled, expired int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.confirmed), len(r.cancelled), len(r.expired)
}

// fixture wires the core services over an in-memory store with one show
// starting 30 hours after the manual clock.  Seats 1..10 use the base
// price except seat 10, which costs 2500.
type fixture struct {
	store        *memory.Store
	clock        *clock.Manual
	events       *recorder
	logs         *test.Hook
	inventory    *service.Inventory
	reservations *service.Reservations
	bookings     *service.Bookings
	reaper       *service.Reaper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := seededStore()
	return newFixtureWith(t, store, store)
}

func seededStore() *memory.Store {
	store := memory.New(time.Second)
	seats := make([]model.Seat, 0, 10)
	for i := uint64(1); i <= 10; i++ {
		seat := model.Seat{ID: i, Number: fmt.Sprintf("A%d", i)}
		if i == 10 {
			seat.PriceCents = 2500
		}
		seats = append(seats, seat)
	}
	store.AddShow(model.Show{
		ID:             showID,
		Title:          "Evening Run",
		StartsAt:       start.Add(30 * time.Hour),
		IsActive:       true,
		BasePriceCents: basePrice,
	}, seats)
	return store
}

func newFixtureWith(t *testing.T, mem *memory.Store, store repository.Store) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	clk := clock.NewManual(start)
	events := &recorder{}
	deps := service.Deps{Store: store, Clock: clk, Log: log, Events: events}
	limits := service.Limits{ReservationTTL: 5 * time.Minute, MaxExtensions: 2, MaxSeatsPerBooking: 6}

	policy := defaultPolicy(t)

	inv := service.NewInventory(deps)
	res := service.NewReservations(deps, inv, limits)
	return &fixture{
		store:        mem,
		clock:        clk,
		events:       events,
		logs:         hook,
		inventory:    inv,
		reservations: res,
		bookings:     service.NewBookings(deps, inv, res, policy, limits),
		reaper:       service.NewReaper(res, store, clk, log, time.Second, 2),
	}
}

func defaultPolicy(t *testing.T) refund.Policy {
	t.Helper()
	policy, err := refund.NewPolicy([]refund.Tier{{HoursBeforeShow: 24, Percentage: 100}, {HoursBeforeShow: 12, Percentage: 75}, {HoursBeforeShow: 2, Percentage: 50}, {HoursBeforeShow: 0, Percentage: 0}}, 2)
	require.NoError(t, err)
	return policy
}

func (f *fixture) hold(t *testing.T, holder string, seats ...uint64) model.Reservation {
	t.Helper()
	res, err := f.reservations.Create(context.Background(), service.HoldRequest{ShowID: showID, SeatIDs: seats, HolderID: holder})
	require.NoError(t, err)
	return res
}

func (f *fixture) seat(t *testing.T, id uint64) model.Seat {
	t.Helper()
	seats, err := f.store.GetSeats(context.Background(), showID, []uint64{id})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	return seats[0]
}

func passengers(n int) []model.Passenger {
	out := make([]model.Passenger, n)
	for i := range out {
		out[i] = model.Passenger{Name: "Passenger", Age: 30}
	}
	return out
}

func contact() model.Contact { return model.Contact{Email: "alice@example.com"} }

var errInjected = errors.New("injected failure")

// faultyStore fails seat writes inside its transactions while
// failSeatWrites is set.
type faultyStore struct {
	repository.Store
	failSeatWrites bool
}

func (s *faultyStore) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: s}, nil
}

type faultyTx struct {
	repository.Tx
	store *faultyStore
}

func (t *faultyTx) UpdateSeats(ctx context.Context, seats []model.Seat) error {
	if t.store.failSeatWrites {
		return errInjected
	}
	return t.Tx.UpdateSeats(ctx, seats)
}

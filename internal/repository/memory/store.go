// Package memory is an in-process implementation of repository.Store.
// It offers the same contract as the MySQL store: snapshot reads of
// committed state, exclusive row locks with a bounded wait, and
// transactions whose writes become visible atomically on commit.  It
// backs the "memory" store driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

type seatKey struct {
	show uint64
	seat uint64
}

// Store holds committed state.
type Store struct {
	mu           sync.RWMutex
	shows        map[uint64]model.Show
	seats        map[seatKey]model.Seat
	reservations map[string]model.Reservation
	bookings     map[string]model.Booking
	history      map[string][]model.BookingStatus

	locks    *lockTable
	lockWait time.Duration
	txSeq    atomic.Uint64
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store whose row locks wait at most lockWait.
func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = time.Second
	}
	return &Store{
		shows:        make(map[uint64]model.Show),
		seats:        make(map[seatKey]model.Seat),
		reservations: make(map[string]model.Reservation),
		bookings:     make(map[string]model.Booking),
		history:      make(map[string][]model.BookingStatus),
		locks:        newLockTable(),
		lockWait:     lockWait,
	}
}

// AddShow loads a show and its seats, replacing any previous copy.  It
// stands in for the catalog, which owns these rows in production.
func (s *Store) AddShow(show model.Show, seats []model.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows[show.ID] = show
	for _, seat := range seats {
		seat.ShowID = show.ID
		if seat.Status == "" {
			seat.Status = model.SeatAvailable
		}
		s.seats[seatKey{show.ID, seat.ID}] = seat
	}
}

// BookingHistory returns the status transitions recorded for a booking.
func (s *Store) BookingHistory(bookingID string) []model.BookingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.BookingStatus(nil), s.history[bookingID]...)
}

func (s *Store) GetShow(_ context.Context, showID uint64) (model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[showID]
	if !ok {
		return model.Show{}, repository.ErrNotFound
	}
	return show, nil
}

func (s *Store) ListSeats(_ context.Context, showID uint64) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Seat
	for k, seat := range s.seats {
		if k.show == showID {
			out = append(out, cloneSeat(seat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetSeats(_ context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Seat
	for _, id := range sortedUnique(seatIDs) {
		if seat, ok := s.seats[seatKey{showID, id}]; ok {
			out = append(out, cloneSeat(seat))
		}
	}
	return out, nil
}

func (s *Store) GetReservation(_ context.Context, id string) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return cloneReservation(r), nil
}

func (s *Store) ListDueReservations(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	var due []model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.ReservationActive && !r.ExpiresAt.After(now) {
			due = append(due, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]string, len(due))
	for i, r := range due {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

// Begin opens a transaction.  Writes are buffered in the transaction and
// applied under the store mutex on Commit.
func (s *Store) Begin(_ context.Context) (repository.Tx, error) {
	return &tx{
		s:            s,
		id:           s.txSeq.Add(1),
		seats:        make(map[seatKey]model.Seat),
		reservations: make(map[string]model.Reservation),
		bookings:     make(map[string]model.Booking),
	}, nil
}

func seatLockKey(showID, seatID uint64) string { return fmt.Sprintf("seat:%d:%d", showID, seatID) }
func reservationLockKey(id string) string     { return "reservation:" + id }
func bookingLockKey(id string) string         { return "booking:" + id }

func sortedUnique(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

func cloneSeat(s model.Seat) model.Seat {
	if s.HoldExpiresAt != nil {
		t := *s.HoldExpiresAt
		s.HoldExpiresAt = &t
	}
	return s
}

func cloneReservation(r model.Reservation) model.Reservation {
	r.SeatIDs = append([]uint64(nil), r.SeatIDs...)
	return r
}

func cloneBooking(b model.Booking) model.Booking {
	b.SeatIDs = append([]uint64(nil), b.SeatIDs...)
	b.Passengers = append([]model.Passenger(nil), b.Passengers...)
	if b.RefundCents != nil {
		v := *b.RefundCents
		b.RefundCents = &v
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		b.CancelledAt = &t
	}
	return b
}

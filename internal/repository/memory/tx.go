package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

type historyEntry struct {
	bookingID string
	status    model.BookingStatus
}

// tx buffers writes until Commit.  It is used by one goroutine at a time.
type tx struct {
	s    *Store
	id   uint64
	done bool
	held []string

	seats        map[seatKey]model.Seat
	reservations map[string]model.Reservation
	bookings     map[string]model.Booking
	history      []historyEntry
}

func (t *tx) lock(key string) error {
	if err := t.s.locks.acquire(key, t, t.s.lockWait); err != nil {
		return err
	}
	for _, k := range t.held {
		if k == key {
			return nil
		}
	}
	t.held = append(t.held, key)
	return nil
}

func (t *tx) seat(k seatKey) (model.Seat, bool) {
	if seat, ok := t.seats[k]; ok {
		return cloneSeat(seat), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	seat, ok := t.s.seats[k]
	return cloneSeat(seat), ok
}

func (t *tx) reservation(id string) (model.Reservation, bool) {
	if r, ok := t.reservations[id]; ok {
		return cloneReservation(r), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.reservations[id]
	return cloneReservation(r), ok
}

func (t *tx) booking(id string) (model.Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		return cloneBooking(b), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	return cloneBooking(b), ok
}

func (t *tx) LockSeats(_ context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error) {
	if t.done {
		return nil, sql.ErrTxDone
	}
	var out []model.Seat
	for _, id := range sortedUnique(seatIDs) {
		if err := t.lock(seatLockKey(showID, id)); err != nil {
			return nil, err
		}
		if seat, ok := t.seat(seatKey{showID, id}); ok {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (t *tx) LockReservation(_ context.Context, id string) (model.Reservation, error) {
	if t.done {
		return model.Reservation{}, sql.ErrTxDone
	}
	if err := t.lock(reservationLockKey(id)); err != nil {
		return model.Reservation{}, err
	}
	r, ok := t.reservation(id)
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (t *tx) LockBooking(_ context.Context, id string) (model.Booking, error) {
	if t.done {
		return model.Booking{}, sql.ErrTxDone
	}
	if err := t.lock(bookingLockKey(id)); err != nil {
		return model.Booking{}, err
	}
	b, ok := t.booking(id)
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *tx) InsertReservation(_ context.Context, r model.Reservation) error {
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.lock(reservationLockKey(r.ID)); err != nil {
		return err
	}
	if _, exists := t.reservation(r.ID); exists {
		return fmt.Errorf("reservation %s: %w", r.ID, repository.ErrDuplicate)
	}
	t.reservations[r.ID] = cloneReservation(r)
	return nil
}

func (t *tx) UpdateReservation(_ context.Context, r model.Reservation) error {
	if t.done {
		return sql.ErrTxDone
	}
	cur, ok := t.reservation(r.ID)
	if !ok {
		return repository.ErrNotFound
	}
	cur.Status = r.Status
	cur.ExpiresAt = r.ExpiresAt
	cur.Extensions = r.Extensions
	cur.UpdatedAt = r.UpdatedAt
	t.reservations[r.ID] = cur
	return nil
}

func (t *tx) UpdateSeats(_ context.Context, seats []model.Seat) error {
	if t.done {
		return sql.ErrTxDone
	}
	for _, seat := range seats {
		k := seatKey{seat.ShowID, seat.ID}
		if !t.s.locks.holds(seatLockKey(k.show, k.seat), t) {
			return fmt.Errorf("update seat %d/%d: row not locked by this transaction", k.show, k.seat)
		}
		if _, ok := t.seat(k); !ok {
			return fmt.Errorf("update seat %d/%d: %w", k.show, k.seat, repository.ErrNotFound)
		}
		t.seats[k] = cloneSeat(seat)
	}
	return nil
}

func (t *tx) InsertBooking(_ context.Context, b model.Booking) error {
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.lock(bookingLockKey(b.ID)); err != nil {
		return err
	}
	if _, exists := t.booking(b.ID); exists {
		return fmt.Errorf("booking %s: %w", b.ID, repository.ErrDuplicate)
	}
	t.bookings[b.ID] = cloneBooking(b)
	t.history = append(t.history, historyEntry{b.ID, b.Status})
	return nil
}

func (t *tx) UpdateBooking(_ context.Context, b model.Booking) error {
	if t.done {
		return sql.ErrTxDone
	}
	cur, ok := t.booking(b.ID)
	if !ok {
		return repository.ErrNotFound
	}
	cur.Status = b.Status
	cur.RefundCents = b.RefundCents
	cur.CancelledAt = b.CancelledAt
	t.bookings[b.ID] = cloneBooking(cur)
	t.history = append(t.history, historyEntry{b.ID, b.Status})
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.s.mu.Lock()
	for k, seat := range t.seats {
		t.s.seats[k] = seat
	}
	for id, r := range t.reservations {
		t.s.reservations[id] = r
	}
	for id, b := range t.bookings {
		t.s.bookings[id] = b
	}
	for _, h := range t.history {
		t.s.history[h.bookingID] = append(t.s.history[h.bookingID], h.status)
	}
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.release(t.held[i], t)
	}
	t.held = nil
}

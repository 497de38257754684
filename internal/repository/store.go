package repository

import (
	"context"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// Reader exposes snapshot reads.  They take no locks and may be briefly
// stale; every mutating path re-reads under lock before writing.
type Reader interface {
	GetShow(ctx context.Context, showID uint64) (model.Show, error)
	// ListSeats returns every seat of the show ordered by seat id.
	ListSeats(ctx context.Context, showID uint64) ([]model.Seat, error)
	// GetSeats returns the subset of seatIDs that exist, ordered by seat id.
	GetSeats(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error)
	GetReservation(ctx context.Context, id string) (model.Reservation, error)
	// ListDueReservations returns ids of ACTIVE reservations whose expiry
	// is at or before now, oldest first.
	ListDueReservations(ctx context.Context, now time.Time, limit int) ([]string, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
}

// Store is the transactional store: snapshot reads plus transactions
// with row-level locking.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one open transaction.  Locks are held until Commit or Rollback.
// Callers lock a reservation or booking row before the seats it
// references, and seats always in ascending id order.
type Tx interface {
	// LockSeats locks the named seats of a show in ascending id order and
	// returns those that exist.  It fails with ErrLockTimeout when a lock
	// cannot be obtained within the store's wait bound.
	LockSeats(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error)
	LockReservation(ctx context.Context, id string) (model.Reservation, error)
	LockBooking(ctx context.Context, id string) (model.Booking, error)

	InsertReservation(ctx context.Context, r model.Reservation) error
	// UpdateReservation writes status, expiry and extension count.
	UpdateReservation(ctx context.Context, r model.Reservation) error
	// UpdateSeats writes status and references of seats previously
	// locked in this transaction.
	UpdateSeats(ctx context.Context, seats []model.Seat) error
	InsertBooking(ctx context.Context, b model.Booking) error
	// UpdateBooking writes status, refund and cancellation time and
	// appends a status history entry.
	UpdateBooking(ctx context.Context, b model.Booking) error

	Commit() error
	Rollback() error
}

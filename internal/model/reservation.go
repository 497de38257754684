package model

import "time"

// ReservationStatus tracks the lifecycle of a hold.  Rows are never
// deleted; a hold leaves ACTIVE exactly once.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationConverted ReservationStatus = "CONVERTED"
)

// Reservation is a time-boxed, advisory hold on a set of seats.
//
// Fields:
//  ID         – uuid primary key.
//  ShowID     – show the seats belong to.
//  HolderID   – subject of the token that created the hold.
//  SeatIDs    – held seats in ascending order.
//  Status     – ACTIVE, EXPIRED, CANCELLED or CONVERTED.
//  Extensions – number of successful extend calls.
//  CreatedAt  – creation timestamp.
//  ExpiresAt  – soft deadline; the hold is dead at or after this instant.
type Reservation struct {
	ID         string            // reservations.id
	ShowID     uint64            // reservations.show_id
	HolderID   string            // reservations.holder_id
	SeatIDs    []uint64          // reservation_seats.seat_id
	Status     ReservationStatus // reservations.status
	Extensions int               // reservations.extensions
	CreatedAt  time.Time         // reservations.created_at
	ExpiresAt  time.Time         // reservations.expires_at
	UpdatedAt  time.Time         // reservations.updated_at
}

// Live reports whether the hold is ACTIVE and not yet due at now.
func (r Reservation) Live(now time.Time) bool {
	return r.Status == ReservationActive && now.Before(r.ExpiresAt)
}

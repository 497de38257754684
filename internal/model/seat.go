package model

import "time"

// SeatStatus is the contended field of a show seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatBooked    SeatStatus = "BOOKED"
)

// Seat is one sellable position of a show, keyed by (ShowID, ID).
//
// Fields:
//  ID            – seat id, unique within the show; locks are always
//                  taken in ascending order of this value.
//  ShowID        – owning show.
//  Number        – human label such as "C7".
//  PriceCents    – authoritative per-seat price; zero means the show
//                  base price applies.
//  Status        – AVAILABLE, RESERVED or BOOKED.
//  ReservationID – hold currently referencing the seat (RESERVED only).
//  HoldExpiresAt – copy of the hold expiry so a lapsed hold can be
//                  detected under the seat lock alone.
//  BookingID     – booking owning the seat (BOOKED only).
type Seat struct {
	ID            uint64     // seats.seat_id
	ShowID        uint64     // seats.show_id
	Number        string     // seats.seat_number
	PriceCents    int64      // seats.price_cents
	Status        SeatStatus // seats.status
	ReservationID string     // seats.reservation_id (nullable)
	HoldExpiresAt *time.Time // seats.hold_expires_at (nullable)
	BookingID     string     // seats.booking_id (nullable)
	UpdatedAt     time.Time  // seats.updated_at
}

// HoldLapsed reports whether the seat is RESERVED by a hold whose expiry
// is at or before now.
func (s Seat) HoldLapsed(now time.Time) bool {
	return s.Status == SeatReserved && s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}

// EffectiveStatus folds a lapsed hold back into AVAILABLE.  The stored
// status may lag behind until the reaper or the next claimant rewrites it.
func (s Seat) EffectiveStatus(now time.Time) SeatStatus {
	if s.HoldLapsed(now) {
		return SeatAvailable
	}
	return s.Status
}

// Claimable reports whether a new hold or a direct booking may take the
// seat at now.
func (s Seat) Claimable(now time.Time) bool {
	return s.EffectiveStatus(now) == SeatAvailable
}

// Price returns the seat price, falling back to base when the seat has
// no price of its own.
func (s Seat) Price(base int64) int64 {
	if s.PriceCents > 0 {
		return s.PriceCents
	}
	return base
}

// Release returns the seat to AVAILABLE and clears every reference.
func (s *Seat) Release() {
	s.Status = SeatAvailable
	s.ReservationID = ""
	s.HoldExpiresAt = nil
	s.BookingID = ""
}

package model

import "time"

// BookingStatus is the durable state of a booking.  Transitions are
// appended to booking_status_history; bookings are never deleted.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Passenger is one entry of the booking manifest.
type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// Contact is where the ticket and notifications are sent.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Booking is the durable, priced result of a commit.
type Booking struct {
	ID            string        // bookings.id
	Reference     string        // bookings.reference
	ShowID        uint64        // bookings.show_id
	HolderID      string        // bookings.holder_id
	ReservationID string        // bookings.reservation_id (nullable)
	SeatIDs       []uint64      // booking_seats.seat_id
	Passengers    []Passenger   // bookings.passengers (JSON)
	Contact       Contact       // bookings.contact_email / contact_phone
	TotalCents    int64         // bookings.total_cents
	RefundCents   *int64        // bookings.refund_cents (nullable)
	Status        BookingStatus // bookings.status
	CreatedAt     time.Time     // bookings.created_at
	CancelledAt   *time.Time    // bookings.cancelled_at (nullable)
}

// Package queue defines message payloads exchanged over the message broker
// and the consumer that hands them to downstream notification.
package queue

// Queue names.  Each event type has its own durable queue.
const (
	BookingConfirmedQueue   = "booking.confirmed"
	BookingCancelledQueue   = "booking.cancelled"
	ReservationExpiredQueue = "reservation.expired"
)

// BookingConfirmedEvent is published after a booking commit. It carries
// enough for a notifier to render a ticket without reading the store.
type BookingConfirmedEvent struct {
	BookingID     string   `json:"booking_id"`
	Reference     string   `json:"reference"`
	ReservationID string   `json:"reservation_id,omitempty"`
	HolderID      string   `json:"holder_id"`
	ShowID        uint64   `json:"show_id"`
	ShowTitle     string   `json:"show_title"`
	StartsAt      string   `json:"starts_at"`
	SeatIDs       []uint64 `json:"seat_ids"`
	TotalCents    int64    `json:"total_cents"`
	ContactEmail  string   `json:"contact_email"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published after a booking is cancelled.
type BookingCancelledEvent struct {
	BookingID        string   `json:"booking_id"`
	Reference        string   `json:"reference"`
	HolderID         string   `json:"holder_id"`
	ShowID           uint64   `json:"show_id"`
	SeatIDs          []uint64 `json:"seat_ids"`
	RefundCents      int64    `json:"refund_cents"`
	RefundPercentage int      `json:"refund_percentage"`
	ContactEmail     string   `json:"contact_email"`
	CancelledAt      string   `json:"cancelled_at"`
}

// ReservationExpiredEvent is published when the reaper closes a hold.
type ReservationExpiredEvent struct {
	ReservationID string   `json:"reservation_id"`
	HolderID      string   `json:"holder_id"`
	ShowID        uint64   `json:"show_id"`
	SeatIDs       []uint64 `json:"released_seat_ids"`
	ExpiredAt     string   `json:"expired_at"`
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-booking/internal/model"
)

func selectBooking(ctx context.Context, q querier, id string, forUpdate bool) (model.Booking, error) {
	query := `SELECT id, reference, show_id, holder_id, reservation_id, passengers,
                     contact_email, contact_phone, total_cents, refund_cents, status, created_at, cancelled_at
              FROM bookings WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		b           model.Booking
		reservation sql.NullString
		passengers  []byte
		phone       sql.NullString
		refund      sql.NullInt64
		status      string
		cancelledAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Reference, &b.ShowID, &b.HolderID, &reservation,
		&passengers, &b.Contact.Email, &phone, &b.TotalCents, &refund, &status, &b.CreatedAt, &cancelledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, translate(err)
	}
	b.ReservationID = reservation.String
	b.Contact.Phone = phone.String
	b.Status = model.BookingStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.CancelledAt = timePtr(cancelledAt)
	if refund.Valid {
		v := refund.Int64
		b.RefundCents = &v
	}
	if len(passengers) > 0 {
		if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
			return model.Booking{}, fmt.Errorf("decode passengers of booking %s: %w", id, err)
		}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`, id)
	if err != nil {
		return model.Booking{}, err
	}
	b.SeatIDs, err = scanIDs(rows)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// insertBooking writes the booking, its seats and the first history
// entry.  It runs inside the commit transaction together with the seat
// transition to BOOKED.
func insertBooking(ctx context.Context, q querier, b model.Booking) error {
	passengers, err := json.Marshal(b.Passengers)
	if err != nil {
		return fmt.Errorf("encode passengers: %w", err)
	}
	var refund sql.NullInt64
	if b.RefundCents != nil {
		refund = sql.NullInt64{Int64: *b.RefundCents, Valid: true}
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO bookings (id, reference, show_id, holder_id, reservation_id, passengers,
                               contact_email, contact_phone, total_cents, refund_cents, status, created_at, cancelled_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Reference, b.ShowID, b.HolderID, nullString(b.ReservationID), passengers,
		b.Contact.Email, nullString(b.Contact.Phone), b.TotalCents, refund, string(b.Status),
		b.CreatedAt.UTC(), nullTime(b.CancelledAt))
	if err != nil {
		return translate(err)
	}
	if len(b.SeatIDs) > 0 {
		query := `INSERT INTO booking_seats (booking_id, show_id, seat_id) VALUES `
		args := make([]any, 0, len(b.SeatIDs)*3)
		for i, seatID := range b.SeatIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, b.ShowID, seatID)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return translate(err)
		}
	}
	return appendBookingHistory(ctx, q, b)
}

func updateBooking(ctx context.Context, q querier, b model.Booking) error {
	var refund sql.NullInt64
	if b.RefundCents != nil {
		refund = sql.NullInt64{Int64: *b.RefundCents, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, refund_cents = ?, cancelled_at = ? WHERE id = ?`,
		string(b.Status), refund, nullTime(b.CancelledAt), b.ID)
	if err != nil {
		return translate(err)
	}
	return appendBookingHistory(ctx, q, b)
}

func appendBookingHistory(ctx context.Context, q querier, b model.Booking) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO booking_status_history (booking_id, status, changed_at) VALUES (?, ?, UTC_TIMESTAMP(6))`,
		b.ID, string(b.Status))
	return translate(err)
}

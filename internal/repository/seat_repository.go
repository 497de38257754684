package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/seat-booking/internal/model"
)

const seatColumns = `seat_id, show_id, seat_number, price_cents, status,
                     reservation_id, hold_expires_at, booking_id, updated_at`

// listSeats returns the full layout of a show in seat id order.
func listSeats(ctx context.Context, q querier, showID uint64) ([]model.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE show_id = ? ORDER BY seat_id`
	rows, err := q.QueryContext(ctx, query, showID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// selectSeats reads the named seats of a show.  With forUpdate the rows
// are locked; InnoDB walks the primary key in ascending order so locks
// are always taken lowest seat id first.
func selectSeats(ctx context.Context, q querier, showID uint64, seatIDs []uint64, forUpdate bool) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + seatColumns + ` FROM seats
              WHERE show_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)
              ORDER BY seat_id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	args := make([]any, 0, len(seatIDs)+1)
	args = append(args, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	seats, err := scanSeats(rows)
	return seats, translate(err)
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var (
			s           model.Seat
			status      string
			reservation sql.NullString
			holdExpiry  sql.NullTime
			booking     sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.ShowID, &s.Number, &s.PriceCents, &status,
			&reservation, &holdExpiry, &booking, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = model.SeatStatus(status)
		s.ReservationID = reservation.String
		s.HoldExpiresAt = timePtr(holdExpiry)
		s.BookingID = booking.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// updateSeats writes back seats that the caller has locked.  One
// statement per seat keeps the write set explicit; hold sizes are bounded
// by the per-booking seat limit.
func updateSeats(ctx context.Context, q querier, seats []model.Seat) error {
	const query = `UPDATE seats
                   SET status = ?, reservation_id = ?, hold_expires_at = ?, booking_id = ?, updated_at = UTC_TIMESTAMP(6)
                   WHERE show_id = ? AND seat_id = ?`
	for _, s := range seats {
		res, err := q.ExecContext(ctx, query, string(s.Status), nullString(s.ReservationID),
			nullTime(s.HoldExpiresAt), nullString(s.BookingID), s.ShowID, s.ID)
		if err != nil {
			return translate(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update seat %d/%d: %w", s.ShowID, s.ID, ErrNotFound)
		}
	}
	return nil
}

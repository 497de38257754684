package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// selectReservation loads a reservation and its seat ids.  With forUpdate
// the reservation row is locked; its seats are locked separately through
// LockSeats so seat lock order stays ascending.
func selectReservation(ctx context.Context, q querier, id string, forUpdate bool) (model.Reservation, error) {
	query := `SELECT id, show_id, holder_id, status, extensions, created_at, expires_at, updated_at
              FROM reservations WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		r      model.Reservation
		status string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.ShowID, &r.HolderID, &status,
		&r.Extensions, &r.CreatedAt, &r.ExpiresAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, translate(err)
	}
	r.Status = model.ReservationStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT seat_id FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_id`, id)
	if err != nil {
		return model.Reservation{}, err
	}
	r.SeatIDs, err = scanIDs(rows)
	if err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

// insertReservation writes the reservation row and one reservation_seats
// row per held seat in a single multi-values insert.
func insertReservation(ctx context.Context, q querier, r model.Reservation) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO reservations (id, show_id, holder_id, status, extensions, created_at, expires_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ShowID, r.HolderID, string(r.Status), r.Extensions, r.CreatedAt.UTC(), r.ExpiresAt.UTC(), r.CreatedAt.UTC())
	if err != nil {
		return translate(err)
	}
	if len(r.SeatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, show_id, seat_id) VALUES `
	args := make([]any, 0, len(r.SeatIDs)*3)
	for i, seatID := range r.SeatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, r.ID, r.ShowID, seatID)
	}
	_, err = q.ExecContext(ctx, query, args...)
	return translate(err)
}

func updateReservation(ctx context.Context, q querier, r model.Reservation) error {
	res, err := q.ExecContext(ctx,
		`UPDATE reservations SET status = ?, expires_at = ?, extensions = ?, updated_at = UTC_TIMESTAMP(6)
         WHERE id = ?`,
		string(r.Status), r.ExpiresAt.UTC(), r.Extensions, r.ID)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// listDueReservations finds holds the reaper should close.  It only
// reads; each hit is re-checked under lock before anything is written.
func listDueReservations(ctx context.Context, q querier, now time.Time, limit int) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM reservations
         WHERE status = ? AND expires_at <= ?
         ORDER BY expires_at
         LIMIT ?`,
		string(model.ReservationActive), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

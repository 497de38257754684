package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves snapshot reads and transactional reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store on MySQL/InnoDB.
type MySQLStore struct {
	db       *sql.DB
	lockWait time.Duration
}

// NewMySQLStore wraps an open pool.  lockWait bounds every row lock wait
// and is rounded up to whole seconds, the granularity InnoDB supports.
func NewMySQLStore(db *sql.DB, lockWait time.Duration) *MySQLStore {
	return &MySQLStore{db: db, lockWait: lockWait}
}

// DB exposes the underlying pool for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

func (s *MySQLStore) GetShow(ctx context.Context, showID uint64) (model.Show, error) {
	return getShow(ctx, s.db, showID)
}

func (s *MySQLStore) ListSeats(ctx context.Context, showID uint64) ([]model.Seat, error) {
	return listSeats(ctx, s.db, showID)
}

func (s *MySQLStore) GetSeats(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error) {
	return selectSeats(ctx, s.db, showID, seatIDs, false)
}

func (s *MySQLStore) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	return selectReservation(ctx, s.db, id, false)
}

func (s *MySQLStore) ListDueReservations(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return listDueReservations(ctx, s.db, now, limit)
}

func (s *MySQLStore) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return selectBooking(ctx, s.db, id, false)
}

// Begin opens a READ COMMITTED transaction and applies the lock wait
// bound to the session.  The transaction is detached from ctx
// cancellation: once begun it always ends in Commit or Rollback.
func (s *MySQLStore) Begin(ctx context.Context) (Tx, error) {
	ctx = context.WithoutCancel(ctx)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	secs := int(math.Ceil(s.lockWait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("set lock wait timeout: %w", err)
	}
	return &mysqlTx{tx: tx}, nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockSeats(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.Seat, error) {
	return selectSeats(ctx, t.tx, showID, seatIDs, true)
}

func (t *mysqlTx) LockReservation(ctx context.Context, id string) (model.Reservation, error) {
	return selectReservation(ctx, t.tx, id, true)
}

func (t *mysqlTx) LockBooking(ctx context.Context, id string) (model.Booking, error) {
	return selectBooking(ctx, t.tx, id, true)
}

func (t *mysqlTx) InsertReservation(ctx context.Context, r model.Reservation) error {
	return insertReservation(ctx, t.tx, r)
}

func (t *mysqlTx) UpdateReservation(ctx context.Context, r model.Reservation) error {
	return updateReservation(ctx, t.tx, r)
}

func (t *mysqlTx) UpdateSeats(ctx context.Context, seats []model.Seat) error {
	return updateSeats(ctx, t.tx, seats)
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b model.Booking) error {
	return insertBooking(ctx, t.tx, b)
}

func (t *mysqlTx) UpdateBooking(ctx context.Context, b model.Booking) error {
	return updateBooking(ctx, t.tx, b)
}

func (t *mysqlTx) Commit() error   { return translate(t.tx.Commit()) }
func (t *mysqlTx) Rollback() error { return t.tx.Rollback() }

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',', ' ')
		}
		b = append(b, '?')
	}
	return string(b)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

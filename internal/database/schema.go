package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; every statement is
// idempotent.  shows is owned by the catalog and created here only so a
// fresh database is usable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shows (
        id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        title            VARCHAR(255)    NOT NULL,
        starts_at        DATETIME(6)     NOT NULL,
        is_active        BOOLEAN         NOT NULL DEFAULT TRUE,
        base_price_cents BIGINT          NOT NULL DEFAULT 0,
        PRIMARY KEY (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS seats (
        show_id         BIGINT UNSIGNED NOT NULL,
        seat_id         BIGINT UNSIGNED NOT NULL,
        seat_number     VARCHAR(16)     NOT NULL,
        price_cents     BIGINT          NOT NULL DEFAULT 0,
        status          ENUM('AVAILABLE','RESERVED','BOOKED') NOT NULL DEFAULT 'AVAILABLE',
        reservation_id  CHAR(36)        NULL,
        hold_expires_at DATETIME(6)     NULL,
        booking_id      CHAR(36)        NULL,
        updated_at      DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
        PRIMARY KEY (show_id, seat_id),
        KEY idx_seats_reservation (reservation_id),
        KEY idx_seats_booking (booking_id),
        CONSTRAINT fk_seats_show FOREIGN KEY (show_id) REFERENCES shows (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservations (
        id         CHAR(36)        NOT NULL,
        show_id    BIGINT UNSIGNED NOT NULL,
        holder_id  VARCHAR(64)     NOT NULL,
        status     ENUM('ACTIVE','EXPIRED','CANCELLED','CONVERTED') NOT NULL,
        extensions INT             NOT NULL DEFAULT 0,
        created_at DATETIME(6)     NOT NULL,
        expires_at DATETIME(6)     NOT NULL,
        updated_at DATETIME(6)     NOT NULL,
        PRIMARY KEY (id),
        KEY idx_reservations_due (status, expires_at)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservation_seats (
        reservation_id CHAR(36)        NOT NULL,
        show_id        BIGINT UNSIGNED NOT NULL,
        seat_id        BIGINT UNSIGNED NOT NULL,
        PRIMARY KEY (reservation_id, seat_id),
        CONSTRAINT fk_reservation_seats_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bookings (
        id             CHAR(36)        NOT NULL,
        reference      VARCHAR(32)     NOT NULL,
        show_id        BIGINT UNSIGNED NOT NULL,
        holder_id      VARCHAR(64)     NOT NULL,
        reservation_id CHAR(36)        NULL,
        passengers     JSON            NOT NULL,
        contact_email  VARCHAR(255)    NOT NULL,
        contact_phone  VARCHAR(32)     NULL,
        total_cents    BIGINT          NOT NULL,
        refund_cents   BIGINT          NULL,
        status         ENUM('PENDING','CONFIRMED','CANCELLED') NOT NULL,
        created_at     DATETIME(6)     NOT NULL,
        cancelled_at   DATETIME(6)     NULL,
        PRIMARY KEY (id),
        UNIQUE KEY uq_bookings_reference (reference),
        KEY idx_bookings_holder (holder_id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
        booking_id CHAR(36)        NOT NULL,
        show_id    BIGINT UNSIGNED NOT NULL,
        seat_id    BIGINT UNSIGNED NOT NULL,
        PRIMARY KEY (booking_id, seat_id),
        CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS booking_status_history (
        id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        booking_id CHAR(36)        NOT NULL,
        status     ENUM('PENDING','CONFIRMED','CANCELLED') NOT NULL,
        changed_at DATETIME(6)     NOT NULL,
        PRIMARY KEY (id),
        KEY idx_booking_history_booking (booking_id)
    ) ENGINE=InnoDB`,
}

// InitSchema creates the tables the booking core reads and writes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// HoldRequest asks for a group hold on seats of one show.  A zero TTL
// means the configured default.
type HoldRequest struct {
	ShowID   uint64
	SeatIDs  []uint64
	HolderID string
	TTL      time.Duration
}

// SeatReason is the per-seat part of an availability report.
type SeatReason struct {
	SeatID      uint64     `json:"seatId"`
	Reason      string     `json:"reason"`
	AvailableAt *time.Time `json:"availableAt,omitempty"`
}

// Reason values in addition to the apperror seat reasons.
const ReasonAvailable = "available"

// AvailabilityReport tells a client which seats of a selection can be
// held and why the others cannot.
type AvailabilityReport struct {
	Available bool         `json:"available"`
	Seats     []SeatReason `json:"seats"`
}

// Reservations creates, extends, cancels and expires holds.  It is the
// only writer of RESERVED seat state.
type Reservations struct {
	store     repository.Store
	inventory *Inventory
	shows     *Shows
	clock     clock.Clock
	log       logrus.FieldLogger
	events    EventPublisher
	limits    Limits
}

// NewReservations returns the reservation manager.
func NewReservations(d Deps, inv *Inventory, limits Limits) *Reservations {
	d = d.withDefaults()
	if limits.ReservationTTL <= 0 {
		limits.ReservationTTL = 5 * time.Minute
	}
	return &Reservations{
		store:     d.Store,
		inventory: inv,
		shows:     d.Shows,
		clock:     d.Clock,
		log:       d.Log,
		events:    d.Events,
		limits:    limits,
	}
}

// DefaultTTL is the hold lifetime used when a request names none.
func (r *Reservations) DefaultTTL() time.Duration { return r.limits.ReservationTTL }

// Create places an all-or-nothing hold.  Under one transaction it locks
// the seats in ascending id order, confirms each is claimable, writes
// the reservation and flips every seat to RESERVED.  Any failing seat
// aborts the whole hold.
func (r *Reservations) Create(ctx context.Context, req HoldRequest) (model.Reservation, error) {
	seatIDs, err := normalizeSelection(req.SeatIDs, r.limits.MaxSeatsPerBooking)
	if err != nil {
		return model.Reservation{}, err
	}
	if req.HolderID == "" {
		return model.Reservation{}, apperror.New(apperror.CodeValidation, "holder is required")
	}
	show, err := r.shows.Fresh(ctx, req.ShowID)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := checkShowOpen(show, r.clock.Now()); err != nil {
		return model.Reservation{}, err
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = r.limits.ReservationTTL
	}
	if err := r.inventory.precheck(ctx, show.ID, seatIDs); err != nil {
		return model.Reservation{}, err
	}

	var res model.Reservation
	err = repository.RunInTx(ctx, r.store, func(ctx context.Context, tx repository.Tx) error {
		now := r.clock.Now()
		seats, err := claimSeats(ctx, tx, show.ID, seatIDs, now)
		if err != nil {
			return err
		}
		// A hold never outlives the show start.
		expiresAt := now.Add(ttl)
		if expiresAt.After(show.StartsAt) {
			expiresAt = show.StartsAt
		}
		res = model.Reservation{
			ID:        uuid.NewString(),
			ShowID:    show.ID,
			HolderID:  req.HolderID,
			SeatIDs:   seatIDs,
			Status:    model.ReservationActive,
			CreatedAt: now,
			ExpiresAt: expiresAt,
			UpdatedAt: now,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		for i := range seats {
			expiresAt := res.ExpiresAt
			seats[i].Status = model.SeatReserved
			seats[i].ReservationID = res.ID
			seats[i].HoldExpiresAt = &expiresAt
			seats[i].BookingID = ""
		}
		return tx.UpdateSeats(ctx, seats)
	})
	if err != nil {
		return model.Reservation{}, fail(r.log, "create reservation", err)
	}

	r.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"show_id":        res.ShowID,
		"holder_id":      res.HolderID,
		"seats":          res.SeatIDs,
		"expires_at":     res.ExpiresAt,
	}).Info("reservation created")
	return res, nil
}

// claimSeats locks seatIDs (sorted ascending) and verifies each exists and
// is claimable at now.  It is shared by hold creation and direct booking.
func claimSeats(ctx context.Context, tx repository.Tx, showID uint64, seatIDs []uint64, now time.Time) ([]model.Seat, error) {
	seats, err := tx.LockSeats(ctx, showID, seatIDs)
	if err != nil {
		return nil, err
	}
	if err := claimIssues(seatIDs, seats, now); err != nil {
		return nil, err
	}
	return seats, nil
}

// Extend moves the expiry of a live hold to newExpiry.  Only the holder
// may extend, only before the current expiry, and at most the configured
// number of times.  The new expiry may lie at most one hold lifetime
// after now and must fall before the show starts.
func (r *Reservations) Extend(ctx context.Context, id, holderID string, newExpiry time.Time) (model.Reservation, error) {
	var res model.Reservation
	err := repository.RunInTx(ctx, r.store, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.LockReservation(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.CodeNotFound, "reservation %s not found", id)
		}
		if err != nil {
			return err
		}
		if res.HolderID != holderID {
			return apperror.New(apperror.CodeNotHolder, "reservation belongs to another holder")
		}
		now := r.clock.Now()
		switch {
		case res.Status == model.ReservationExpired,
			res.Status == model.ReservationActive && !now.Before(res.ExpiresAt):
			return apperror.Newf(apperror.CodeReservationExpired, "reservation %s has expired", id)
		case res.Status != model.ReservationActive:
			return apperror.Newf(apperror.CodeNotFound, "reservation %s is no longer active", id)
		}
		if !newExpiry.After(res.ExpiresAt) {
			return apperror.New(apperror.CodeValidation, "new expiry must be later than the current one")
		}
		if res.Extensions >= r.limits.MaxExtensions {
			return apperror.Newf(apperror.CodeValidation, "reservation may be extended at most %d times", r.limits.MaxExtensions)
		}
		if limit := now.Add(r.limits.ReservationTTL); newExpiry.After(limit) {
			return apperror.Newf(apperror.CodeValidation, "a hold may be extended to at most %s from now", r.limits.ReservationTTL)
		}
		show, err := r.shows.Fresh(ctx, res.ShowID)
		if err != nil {
			return err
		}
		if !newExpiry.Before(show.StartsAt) {
			return apperror.Newf(apperror.CodeValidation, "a hold must end before show %d starts", show.ID)
		}

		seats, err := tx.LockSeats(ctx, res.ShowID, res.SeatIDs)
		if err != nil {
			return err
		}
		held := seats[:0]
		for _, seat := range seats {
			if seat.Status == model.SeatReserved && seat.ReservationID == res.ID {
				expiresAt := newExpiry
				seat.HoldExpiresAt = &expiresAt
				held = append(held, seat)
			}
		}
		res.ExpiresAt = newExpiry
		res.Extensions++
		res.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		return tx.UpdateSeats(ctx, held)
	})
	if err != nil {
		return model.Reservation{}, fail(r.log, "extend reservation", err)
	}
	r.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"expires_at":     res.ExpiresAt,
		"extensions":     res.Extensions,
	}).Info("reservation extended")
	return res, nil
}

// ExtendDefault extends a hold by the default TTL counted from now.
func (r *Reservations) ExtendDefault(ctx context.Context, id, holderID string) (model.Reservation, error) {
	return r.Extend(ctx, id, holderID, r.clock.Now().Add(r.limits.ReservationTTL))
}

// Cancel releases a hold on behalf of its holder.  It is idempotent:
// unknown, expired, cancelled and converted reservations are a no-op.
// A hold that is past its expiry but not yet swept is closed as expired.
func (r *Reservations) Cancel(ctx context.Context, id, holderID string) error {
	var released []uint64
	err := repository.RunInTx(ctx, r.store, func(ctx context.Context, tx repository.Tx) error {
		res, err := tx.LockReservation(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return nil
		}
		if holderID != "" && res.HolderID != holderID {
			return apperror.New(apperror.CodeNotHolder, "reservation belongs to another holder")
		}
		now := r.clock.Now()
		status := model.ReservationCancelled
		if !now.Before(res.ExpiresAt) {
			status = model.ReservationExpired
		}
		released, err = r.close(ctx, tx, res, status, now)
		return err
	})
	if err != nil {
		return fail(r.log, "cancel reservation", err)
	}
	if len(released) > 0 {
		r.log.WithFields(logrus.Fields{"reservation_id": id, "seats": released}).Info("reservation cancelled")
	}
	return nil
}

// Expire closes a due hold and returns its seats to AVAILABLE.  It reports
// false, without error, when there is nothing to do: the reservation is
// gone, no longer ACTIVE, or was extended in the meantime.
func (r *Reservations) Expire(ctx context.Context, id string) (bool, error) {
	var (
		expired bool
		res     model.Reservation
		seats   []uint64
		now     time.Time
	)
	err := repository.RunInTx(ctx, r.store, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.LockReservation(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		now = r.clock.Now()
		if res.Status != model.ReservationActive || now.Before(res.ExpiresAt) {
			return nil
		}
		seats, err = r.close(ctx, tx, res, model.ReservationExpired, now)
		if err != nil {
			return err
		}
		expired = true
		repository.AfterCommit(ctx, func() {
			publish(r.log, queue.ReservationExpiredQueue, r.events.PublishReservationExpired(ctx, queue.ReservationExpiredEvent{
				ReservationID: res.ID,
				HolderID:      res.HolderID,
				ShowID:        res.ShowID,
				SeatIDs:       seats,
				ExpiredAt:     formatTime(now),
			}))
		})
		return nil
	})
	if err != nil {
		return false, fail(r.log, "expire reservation", err)
	}
	if expired {
		r.log.WithFields(logrus.Fields{"reservation_id": id, "seats": seats}).Info("reservation expired")
	}
	return expired, nil
}

// close moves an ACTIVE reservation to status and releases the seats it
// still holds.  Seats that were re-claimed after the hold lapsed, or that
// are BOOKED, are left untouched.  The reservation row must already be
// locked by tx.
func (r *Reservations) close(ctx context.Context, tx repository.Tx, res model.Reservation, status model.ReservationStatus, now time.Time) ([]uint64, error) {
	seats, err := tx.LockSeats(ctx, res.ShowID, res.SeatIDs)
	if err != nil {
		return nil, err
	}
	var (
		held     []model.Seat
		released []uint64
	)
	for _, seat := range seats {
		if seat.Status == model.SeatReserved && seat.ReservationID == res.ID {
			seat.Release()
			held = append(held, seat)
			released = append(released, seat.ID)
		}
	}
	res.Status = status
	res.UpdatedAt = now
	if err := tx.UpdateReservation(ctx, res); err != nil {
		return nil, err
	}
	if err := tx.UpdateSeats(ctx, held); err != nil {
		return nil, err
	}
	return released, nil
}

// CheckDetailedAvailability explains, per seat, whether a selection can be
// held right now: available, booked, reserved until a given time, or
// unknown.
func (r *Reservations) CheckDetailedAvailability(ctx context.Context, showID uint64, seatIDs []uint64) (AvailabilityReport, error) {
	if len(seatIDs) == 0 {
		return AvailabilityReport{}, apperror.New(apperror.CodeEmptySelection, "select at least one seat")
	}
	views, err := r.inventory.GetAvailability(ctx, showID, seatIDs)
	if err != nil {
		return AvailabilityReport{}, err
	}
	report := AvailabilityReport{Available: true, Seats: make([]SeatReason, 0, len(views))}
	for _, v := range views {
		sr := SeatReason{SeatID: v.SeatID}
		switch v.Status {
		case model.SeatAvailable:
			sr.Reason = ReasonAvailable
		case model.SeatBooked:
			sr.Reason = apperror.ReasonBooked
		case model.SeatReserved:
			sr.Reason = apperror.ReasonReserved
			sr.AvailableAt = v.AvailableAt
		default:
			sr.Reason = apperror.ReasonUnknown
		}
		if sr.Reason != ReasonAvailable {
			report.Available = false
		}
		report.Seats = append(report.Seats, sr)
	}
	return report, nil
}

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
	"github.com/iliyamo/seat-booking/internal/refund"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/utils"
)

// BookingSource says what a commit converts: an existing hold or a
// direct seat selection.  It is a closed set; see HoldSource and
// DirectSource.
type BookingSource interface {
	bookingSource()
}

// HoldSource commits the seats of an existing reservation.
type HoldSource struct {
	ReservationID string
}

// DirectSource books seats of a show without a prior hold.
type DirectSource struct {
	ShowID uint64
}

func (HoldSource) bookingSource()   {}
func (DirectSource) bookingSource() {}

// CommitRequest is a validated booking request.  SeatIDs may be empty on
// the hold path, meaning every held seat.  ExpectedTotalCents, when set,
// is compared against the server-side price and never used as the price.
type CommitRequest struct {
	Source             BookingSource
	SeatIDs            []uint64
	HolderID           string
	Passengers         []model.Passenger
	Contact            model.Contact
	ExpectedTotalCents *int64
}

// CancelResult is the outcome of a booking cancellation.
type CancelResult struct {
	BookingID        string              `json:"bookingId"`
	Status           model.BookingStatus `json:"status"`
	RefundCents      int64               `json:"refundAmount"`
	RefundPercentage int                 `json:"refundPercentage"`
}

// Bookings is the booking commit coordinator and the cancellation flow.
// It is the only writer of BOOKED seat state.
type Bookings struct {
	store        repository.Store
	inventory    *Inventory
	reservations *Reservations
	shows        *Shows
	policy       refund.Policy
	clock        clock.Clock
	log          logrus.FieldLogger
	events       EventPublisher
	limits       Limits
}

// NewBookings returns the commit coordinator.
func NewBookings(d Deps, inv *Inventory, reservations *Reservations, policy refund.Policy, limits Limits) *Bookings {
	d = d.withDefaults()
	return &Bookings{
		store:        d.Store,
		inventory:    inv,
		reservations: reservations,
		shows:        d.Shows,
		policy:       policy,
		clock:        d.Clock,
		log:          d.Log,
		events:       d.Events,
		limits:       limits,
	}
}

// Commit turns a hold or a direct selection into a CONFIRMED booking in a
// single transaction.  Seats are re-locked and re-validated even when a
// hold exists: the hold is advisory and may have lapsed since it was
// taken.  The total is always computed from the stored seat prices.
func (b *Bookings) Commit(ctx context.Context, req CommitRequest) (model.Booking, error) {
	if req.HolderID == "" {
		return model.Booking{}, apperror.New(apperror.CodeValidation, "holder is required")
	}
	if req.Contact.Email == "" {
		return model.Booking{}, apperror.New(apperror.CodeValidation, "contact email is required")
	}
	if len(req.Passengers) == 0 {
		return model.Booking{}, apperror.New(apperror.CodeValidation, "at least one passenger is required")
	}

	var (
		booking model.Booking
		show    model.Show
		err     error
	)
	switch src := req.Source.(type) {
	case HoldSource:
		booking, show, err = b.commitHold(ctx, src, req)
	case DirectSource:
		booking, show, err = b.commitDirect(ctx, src, req)
	default:
		return model.Booking{}, apperror.New(apperror.CodeValidation, "either a reservation or a show must be given")
	}
	if err != nil {
		return model.Booking{}, fail(b.log, "commit booking", err)
	}

	b.log.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"reference":      booking.Reference,
		"reservation_id": booking.ReservationID,
		"show_id":        show.ID,
		"holder_id":      booking.HolderID,
		"seats":          booking.SeatIDs,
		"total_cents":    booking.TotalCents,
	}).Info("booking committed")
	return booking, nil
}

func (b *Bookings) commitHold(ctx context.Context, src HoldSource, req CommitRequest) (model.Booking, model.Show, error) {
	var requested []uint64
	if len(req.SeatIDs) > 0 {
		var err error
		if requested, err = normalizeSelection(req.SeatIDs, b.limits.MaxSeatsPerBooking); err != nil {
			return model.Booking{}, model.Show{}, err
		}
	}

	var (
		booking model.Booking
		show    model.Show
	)
	err := repository.RunInTx(ctx, b.store, func(ctx context.Context, tx repository.Tx) error {
		res, err := tx.LockReservation(ctx, src.ReservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.CodeNotFound, "reservation %s not found", src.ReservationID)
		}
		if err != nil {
			return err
		}
		if res.HolderID != req.HolderID {
			return apperror.New(apperror.CodeNotHolder, "reservation belongs to another holder")
		}
		now := b.clock.Now()
		if !res.Live(now) {
			return apperror.Newf(apperror.CodeReservationExpired, "reservation %s is no longer active; hold the seats again", res.ID)
		}
		seatIDs := res.SeatIDs
		if requested != nil && !sameSeats(requested, res.SeatIDs) {
			return apperror.New(apperror.CodeValidation, "seats differ from the held seats")
		}
		if len(req.Passengers) != len(seatIDs) {
			return apperror.Newf(apperror.CodeValidation, "expected %d passengers, got %d", len(seatIDs), len(req.Passengers))
		}
		if show, err = b.shows.Fresh(ctx, res.ShowID); err != nil {
			return err
		}
		if err := checkShowOpen(show, now); err != nil {
			return err
		}

		seats, err := tx.LockSeats(ctx, res.ShowID, seatIDs)
		if err != nil {
			return err
		}
		if missing := missingSeats(seatIDs, seats); len(missing) > 0 {
			return apperror.WithSeats(apperror.CodeSeatNotFound, "some held seats no longer exist", missing)
		}
		var conflicts []apperror.SeatIssue
		for _, seat := range seats {
			if seat.Status != model.SeatReserved || seat.ReservationID != res.ID {
				conflicts = append(conflicts, seatIssue(seat))
			}
		}
		if len(conflicts) > 0 {
			return apperror.WithSeats(apperror.CodeSeatConflict, "some held seats were taken", conflicts)
		}

		booking, err = b.write(ctx, tx, show, seats, req, res.ID, now)
		if err != nil {
			return err
		}
		res.Status = model.ReservationConverted
		res.UpdatedAt = now
		return tx.UpdateReservation(ctx, res)
	})
	return booking, show, err
}

func (b *Bookings) commitDirect(ctx context.Context, src DirectSource, req CommitRequest) (model.Booking, model.Show, error) {
	seatIDs, err := normalizeSelection(req.SeatIDs, b.limits.MaxSeatsPerBooking)
	if err != nil {
		return model.Booking{}, model.Show{}, err
	}
	if len(req.Passengers) != len(seatIDs) {
		return model.Booking{}, model.Show{}, apperror.Newf(apperror.CodeValidation, "expected %d passengers, got %d", len(seatIDs), len(req.Passengers))
	}
	show, err := b.shows.Fresh(ctx, src.ShowID)
	if err != nil {
		return model.Booking{}, model.Show{}, err
	}
	if err := checkShowOpen(show, b.clock.Now()); err != nil {
		return model.Booking{}, model.Show{}, err
	}
	if err := b.inventory.precheck(ctx, show.ID, seatIDs); err != nil {
		return model.Booking{}, model.Show{}, err
	}

	var booking model.Booking
	err = repository.RunInTx(ctx, b.store, func(ctx context.Context, tx repository.Tx) error {
		now := b.clock.Now()
		seats, err := claimSeats(ctx, tx, show.ID, seatIDs, now)
		if err != nil {
			return err
		}
		booking, err = b.write(ctx, tx, show, seats, req, "", now)
		return err
	})
	return booking, show, err
}

// write prices the locked seats, inserts the booking and flips the seats
// to BOOKED.  It runs inside the commit transaction; an error here aborts
// every write made so far.
func (b *Bookings) write(ctx context.Context, tx repository.Tx, show model.Show, seats []model.Seat, req CommitRequest, reservationID string, now time.Time) (model.Booking, error) {
	var total int64
	seatIDs := make([]uint64, len(seats))
	for i, seat := range seats {
		total += seat.Price(show.BasePriceCents)
		seatIDs[i] = seat.ID
	}
	if req.ExpectedTotalCents != nil && *req.ExpectedTotalCents != total {
		return model.Booking{}, apperror.Newf(apperror.CodePriceMismatch,
			"price changed: expected %d, current total is %d", *req.ExpectedTotalCents, total)
	}
	ref, err := utils.NewBookingReference(now)
	if err != nil {
		return model.Booking{}, err
	}
	booking := model.Booking{
		ID:            uuid.NewString(),
		Reference:     ref,
		ShowID:        show.ID,
		HolderID:      req.HolderID,
		ReservationID: reservationID,
		SeatIDs:       seatIDs,
		Passengers:    req.Passengers,
		Contact:       req.Contact,
		TotalCents:    total,
		Status:        model.BookingConfirmed,
		CreatedAt:     now,
	}
	if err := tx.InsertBooking(ctx, booking); err != nil {
		return model.Booking{}, err
	}
	for i := range seats {
		seats[i].Status = model.SeatBooked
		seats[i].BookingID = booking.ID
		seats[i].ReservationID = ""
		seats[i].HoldExpiresAt = nil
	}
	if err := tx.UpdateSeats(ctx, seats); err != nil {
		return model.Booking{}, err
	}

	repository.AfterCommit(ctx, func() {
		publish(b.log, queue.BookingConfirmedQueue, b.events.PublishBookingConfirmed(ctx, queue.BookingConfirmedEvent{
			BookingID:     booking.ID,
			Reference:     booking.Reference,
			ReservationID: booking.ReservationID,
			HolderID:      booking.HolderID,
			ShowID:        show.ID,
			ShowTitle:     show.Title,
			StartsAt:      formatTime(show.StartsAt),
			SeatIDs:       booking.SeatIDs,
			TotalCents:    booking.TotalCents,
			ContactEmail:  booking.Contact.Email,
			ConfirmedAt:   formatTime(now),
		}))
	})
	return booking, nil
}

// Get returns a booking to its holder.
func (b *Bookings) Get(ctx context.Context, bookingID, holderID string) (model.Booking, error) {
	booking, err := b.store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Booking{}, apperror.Newf(apperror.CodeNotFound, "booking %s not found", bookingID)
	}
	if err != nil {
		return model.Booking{}, fail(b.log, "get booking", err)
	}
	if booking.HolderID != holderID {
		return model.Booking{}, apperror.New(apperror.CodeNotHolder, "booking belongs to another holder")
	}
	return booking, nil
}

package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/refund"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Cancel cancels a confirmed booking for its holder.  The refund policy
// decides eligibility and the refund from the hours left before the
// show; the booking's seats go back to AVAILABLE and the booking is kept
// as CANCELLED with the refund recorded.  Cancelling an already
// cancelled booking returns the recorded outcome.
func (b *Bookings) Cancel(ctx context.Context, bookingID, holderID string) (CancelResult, error) {
	var (
		result   CancelResult
		released []uint64
	)
	err := repository.RunInTx(ctx, b.store, func(ctx context.Context, tx repository.Tx) error {
		booking, err := tx.LockBooking(ctx, bookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.CodeNotFound, "booking %s not found", bookingID)
		}
		if err != nil {
			return err
		}
		if booking.HolderID != holderID {
			return apperror.New(apperror.CodeNotHolder, "booking belongs to another holder")
		}
		show, err := b.shows.Fresh(ctx, booking.ShowID)
		if err != nil {
			return err
		}
		if booking.Status == model.BookingCancelled {
			result = b.recordedCancellation(booking, show)
			return nil
		}

		now := b.clock.Now()
		if !b.policy.CanCancel(show.StartsAt, now) {
			return apperror.New(apperror.CodeCancellationClosed, "the cancellation window for this show has closed")
		}
		hours := refund.HoursUntil(show.StartsAt, now)
		amount := b.policy.RefundAmount(booking.TotalCents, hours)
		pct := b.policy.RefundPercentage(hours)

		seats, err := tx.LockSeats(ctx, booking.ShowID, booking.SeatIDs)
		if err != nil {
			return err
		}
		var owned []model.Seat
		for _, seat := range seats {
			if seat.Status == model.SeatBooked && seat.BookingID == booking.ID {
				seat.Release()
				owned = append(owned, seat)
				released = append(released, seat.ID)
			}
		}
		if err := tx.UpdateSeats(ctx, owned); err != nil {
			return err
		}

		cancelledAt := now
		booking.Status = model.BookingCancelled
		booking.RefundCents = &amount
		booking.CancelledAt = &cancelledAt
		if err := tx.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		result = CancelResult{BookingID: booking.ID, Status: booking.Status, RefundCents: amount, RefundPercentage: pct}

		repository.AfterCommit(ctx, func() {
			publish(b.log, queue.BookingCancelledQueue, b.events.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
				BookingID:        booking.ID,
				Reference:        booking.Reference,
				HolderID:         booking.HolderID,
				ShowID:           booking.ShowID,
				SeatIDs:          released,
				RefundCents:      amount,
				RefundPercentage: pct,
				ContactEmail:     booking.Contact.Email,
				CancelledAt:      formatTime(now),
			}))
		})
		return nil
	})
	if err != nil {
		return CancelResult{}, fail(b.log, "cancel booking", err)
	}
	if len(released) > 0 {
		b.log.WithFields(logrus.Fields{
			"booking_id":   bookingID,
			"seats":        released,
			"refund_cents": result.RefundCents,
		}).Info("booking cancelled")
	}
	return result, nil
}

// recordedCancellation reports a past cancellation the way it was first
// reported: the refund as stored and the tier that applied at the
// cancellation time.
func (b *Bookings) recordedCancellation(booking model.Booking, show model.Show) CancelResult {
	result := CancelResult{BookingID: booking.ID, Status: booking.Status}
	if booking.RefundCents != nil {
		result.RefundCents = *booking.RefundCents
	}
	if booking.CancelledAt != nil {
		result.RefundPercentage = b.policy.RefundPercentage(refund.HoursUntil(show.StartsAt, *booking.CancelledAt))
	}
	return result
}

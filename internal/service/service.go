// Package service implements the seat reservation and booking-commit
// core: the inventory view, the reservation manager, the booking commit
// coordinator with its cancellation flow, and the expiry reaper.
//
// Every mutating operation opens its own transaction through
// repository.RunInTx and locks rows in a fixed order: the reservation or
// booking row first, then seats by ascending id.  Atomically lets a caller
// fold several operations into one transaction.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Deps are the collaborators shared by the core services.
type Deps struct {
	Store  repository.Store
	Shows  *Shows
	Clock  clock.Clock
	Log    logrus.FieldLogger
	Events EventPublisher
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		d.Log = l
	}
	if d.Events == nil {
		d.Events = NopPublisher{}
	}
	if d.Shows == nil {
		d.Shows = NewShows(d.Store, nil, 0, d.Log)
	}
	return d
}

// Limits bound what a single caller may hold or book.
type Limits struct {
	ReservationTTL     time.Duration
	MaxExtensions      int
	MaxSeatsPerBooking int
}

// Atomically runs fn in one transaction.  Core operations called with the
// ctx handed to fn join that transaction instead of opening their own, so
// either all of their writes commit or none do.  Events they emit are
// published only after the commit.
func Atomically(ctx context.Context, store repository.Store, fn func(ctx context.Context) error) error {
	return repository.RunInTx(ctx, store, func(ctx context.Context, _ repository.Tx) error {
		return fn(ctx)
	})
}

// normalizeSelection validates a seat selection and returns it sorted
// ascending, the order locks are taken in.
func normalizeSelection(seatIDs []uint64, maxSeats int) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, apperror.New(apperror.CodeEmptySelection, "select at least one seat")
	}
	if maxSeats > 0 && len(seatIDs) > maxSeats {
		return nil, apperror.Newf(apperror.CodeValidation, "at most %d seats may be selected", maxSeats)
	}
	out := append([]uint64(nil), seatIDs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	for i, id := range out {
		if id == 0 {
			return nil, apperror.New(apperror.CodeValidation, "seat id must be positive")
		}
		if i > 0 && out[i-1] == id {
			return nil, apperror.Newf(apperror.CodeValidation, "seat %d selected more than once", id)
		}
	}
	return out, nil
}

func sameSeats(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkShowOpen rejects shows that can no longer be sold.
func checkShowOpen(show model.Show, now time.Time) error {
	if !show.IsActive {
		return apperror.Newf(apperror.CodeValidation, "show %d is not on sale", show.ID)
	}
	if show.HasStarted(now) {
		return apperror.Newf(apperror.CodeValidation, "show %d has already started", show.ID)
	}
	return nil
}

// missingSeats lists requested ids absent from found.  Both slices are
// sorted ascending.
func missingSeats(requested []uint64, found []model.Seat) []apperror.SeatIssue {
	var issues []apperror.SeatIssue
	j := 0
	for _, id := range requested {
		for j < len(found) && found[j].ID < id {
			j++
		}
		if j < len(found) && found[j].ID == id {
			continue
		}
		issues = append(issues, apperror.SeatIssue{SeatID: id, Reason: apperror.ReasonUnknown})
	}
	return issues
}

// seatIssue describes why seat is not available to a new claimant.
func seatIssue(seat model.Seat) apperror.SeatIssue {
	issue := apperror.SeatIssue{SeatID: seat.ID, Reason: apperror.ReasonBooked}
	if seat.Status == model.SeatReserved {
		issue.Reason = apperror.ReasonReserved
		if seat.HoldExpiresAt != nil {
			at := *seat.HoldExpiresAt
			issue.AvailableAt = &at
		}
	}
	return issue
}

// fail turns a store or service error into the error returned to
// callers.  Lock wait timeouts become retryable seat conflicts; foreign
// errors are logged and reported as internal.
func fail(log logrus.FieldLogger, op string, err error) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrLockTimeout):
		return apperror.New(apperror.CodeSeatConflict, "seats are being changed by another request; retry")
	default:
		log.WithError(err).WithField("op", op).Error("store operation failed")
		return apperror.Internal(op, err)
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

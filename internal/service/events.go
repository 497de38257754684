package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/queue"
)

// EventPublisher announces committed state changes.  Publishing happens
// after the transaction commits; a failure is logged and never undoes or
// fails the operation.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
	PublishReservationExpired(ctx context.Context, ev queue.ReservationExpiredEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, queue.BookingConfirmedEvent) error {
	return nil
}

func (NopPublisher) PublishBookingCancelled(context.Context, queue.BookingCancelledEvent) error {
	return nil
}

func (NopPublisher) PublishReservationExpired(context.Context, queue.ReservationExpiredEvent) error {
	return nil
}

func publish(log logrus.FieldLogger, event string, err error) {
	if err != nil {
		log.WithError(err).WithField("event", event).Warn("event publish failed")
	}
}

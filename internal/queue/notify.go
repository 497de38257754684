package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogNotifier returns a Handler that decodes each event and writes one
// structured log line per message.  It is the hand-off point to the
// external notification service.
func LogNotifier(log logrus.FieldLogger) Handler {
	return func(_ context.Context, queue string, body []byte) error {
		switch queue {
		case BookingConfirmedQueue:
			var ev BookingConfirmedEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("unmarshal %s: %w", queue, err)
			}
			log.WithFields(logrus.Fields{
				"booking_id":  ev.BookingID,
				"reference":   ev.Reference,
				"holder_id":   ev.HolderID,
				"show_id":     ev.ShowID,
				"seats":       ev.SeatIDs,
				"total_cents": ev.TotalCents,
				"email":       ev.ContactEmail,
			}).Info("notify: booking confirmed")
		case BookingCancelledQueue:
			var ev BookingCancelledEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("unmarshal %s: %w", queue, err)
			}
			log.WithFields(logrus.Fields{
				"booking_id":   ev.BookingID,
				"reference":    ev.Reference,
				"holder_id":    ev.HolderID,
				"refund_cents": ev.RefundCents,
				"email":        ev.ContactEmail,
			}).Info("notify: booking cancelled")
		case ReservationExpiredQueue:
			var ev ReservationExpiredEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("unmarshal %s: %w", queue, err)
			}
			log.WithFields(logrus.Fields{
				"reservation_id": ev.ReservationID,
				"holder_id":      ev.HolderID,
				"show_id":        ev.ShowID,
				"seats":          ev.SeatIDs,
			}).Info("notify: hold expired")
		default:
			return fmt.Errorf("unknown queue %q", queue)
		}
		return nil
	}
}

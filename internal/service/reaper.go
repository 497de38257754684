package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Reaper periodically closes holds whose expiry has passed and returns
// their seats to AVAILABLE.  Each reservation is expired in its own
// transaction, so a slow or failing one does not hold up the batch, and
// running several reapers at once is safe.
type Reaper struct {
	reservations *Reservations
	reader       repository.Reader
	clock        clock.Clock
	log          logrus.FieldLogger
	interval     time.Duration
	batch        int
}

// NewReaper returns a reaper sweeping every interval, at most batch holds
// per pass.
func NewReaper(reservations *Reservations, reader repository.Reader, clk clock.Clock, log logrus.FieldLogger, interval time.Duration, batch int) *Reaper {
	if clk == nil {
		clk = clock.System{}
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Reaper{
		reservations: reservations,
		reader:       reader,
		clock:        clk,
		log:          log,
		interval:     interval,
		batch:        batch,
	}
}

// Run sweeps until ctx is cancelled.  Sweep errors are logged and the
// loop keeps going.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.log.WithField("interval", r.interval.String()).Info("expiry reaper started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("expiry reaper stopped")
			return nil
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.log.WithError(err).Warn("expiry sweep failed")
			}
		}
	}
}

// SweepOnce expires every due hold it can find, batch by batch, and
// returns how many it closed.  Holds extended or converted between the
// listing and the lock are skipped.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	seen := make(map[string]struct{})
	for {
		ids, err := r.reader.ListDueReservations(ctx, r.clock.Now(), r.batch)
		if err != nil {
			return total, err
		}
		progressed := false
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			progressed = true
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			ok, err := r.reservations.Expire(ctx, id)
			if err != nil {
				r.log.WithError(err).WithField("reservation_id", id).Warn("failed to expire reservation")
				continue
			}
			if ok {
				total++
			}
		}
		if !progressed || len(ids) < r.batch {
			break
		}
	}
	if total > 0 {
		r.log.WithField("expired", total).Info("expiry sweep finished")
	}
	return total, nil
}

package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// StatusUnknown is reported for seat ids that do not exist in the show.
const StatusUnknown model.SeatStatus = "UNKNOWN"

// SeatView is one seat as shown to a customer.
type SeatView struct {
	SeatID      uint64           `json:"seatId"`
	Number      string           `json:"number,omitempty"`
	Status      model.SeatStatus `json:"status"`
	PriceCents  int64            `json:"priceCents,omitempty"`
	AvailableAt *time.Time       `json:"availableAt,omitempty"`
}

// Inventory is the read-only projection of seat state.  Reads are
// snapshots without locks and may trail concurrent writers slightly.
type Inventory struct {
	store repository.Reader
	shows *Shows
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewInventory returns the seat inventory view.
func NewInventory(d Deps) *Inventory {
	d = d.withDefaults()
	return &Inventory{store: d.Store, shows: d.Shows, clock: d.Clock, log: d.Log}
}

func (inv *Inventory) view(seat model.Seat, base int64, now time.Time) SeatView {
	v := SeatView{
		SeatID:     seat.ID,
		Number:     seat.Number,
		Status:     seat.EffectiveStatus(now),
		PriceCents: seat.Price(base),
	}
	if v.Status == model.SeatReserved && seat.HoldExpiresAt != nil {
		at := *seat.HoldExpiresAt
		v.AvailableAt = &at
	}
	return v
}

// GetLayout returns every seat of the show in seat id order.  It always
// reads the store; seat state is never served from a cache.
func (inv *Inventory) GetLayout(ctx context.Context, showID uint64) ([]SeatView, error) {
	show, err := inv.shows.Get(ctx, showID)
	if err != nil {
		return nil, err
	}
	seats, err := inv.store.ListSeats(ctx, showID)
	if err != nil {
		return nil, fail(inv.log, "list seats", err)
	}
	now := inv.clock.Now()
	out := make([]SeatView, 0, len(seats))
	for _, seat := range seats {
		out = append(out, inv.view(seat, show.BasePriceCents, now))
	}
	return out, nil
}

// GetAvailability reports the status of each requested seat, in request
// order.  Ids that do not belong to the show are reported as UNKNOWN.
func (inv *Inventory) GetAvailability(ctx context.Context, showID uint64, seatIDs []uint64) ([]SeatView, error) {
	show, err := inv.shows.Get(ctx, showID)
	if err != nil {
		return nil, err
	}
	seats, err := inv.store.GetSeats(ctx, showID, seatIDs)
	if err != nil {
		return nil, fail(inv.log, "get seats", err)
	}
	byID := make(map[uint64]model.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	now := inv.clock.Now()
	out := make([]SeatView, 0, len(seatIDs))
	seen := make(map[uint64]bool, len(seatIDs))
	for _, id := range seatIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		seat, ok := byID[id]
		if !ok {
			out = append(out, SeatView{SeatID: id, Status: StatusUnknown})
			continue
		}
		out = append(out, inv.view(seat, show.BasePriceCents, now))
	}
	return out, nil
}

// precheck is the cheap rejection done before a transaction is opened.
// It returns a SeatNotFound or SeatConflict error built from the
// snapshot, or nil when every seat looks claimable.
func (inv *Inventory) precheck(ctx context.Context, showID uint64, seatIDs []uint64) error {
	seats, err := inv.store.GetSeats(ctx, showID, seatIDs)
	if err != nil {
		return fail(inv.log, "get seats", err)
	}
	return claimIssues(seatIDs, seats, inv.clock.Now())
}

// claimIssues checks that every requested seat exists and is claimable at
// now.  seatIDs and seats are sorted ascending.
func claimIssues(seatIDs []uint64, seats []model.Seat, now time.Time) error {
	if missing := missingSeats(seatIDs, seats); len(missing) > 0 {
		return apperror.WithSeats(apperror.CodeSeatNotFound, "some seats do not exist in this show", missing)
	}
	var conflicts []apperror.SeatIssue
	for _, seat := range seats {
		if !seat.Claimable(now) {
			conflicts = append(conflicts, seatIssue(seat))
		}
	}
	if len(conflicts) > 0 {
		return apperror.WithSeats(apperror.CodeSeatConflict, "some seats are no longer available", conflicts)
	}
	return nil
}

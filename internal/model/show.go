package model

import "time"

// Show is a read-only reference to a screening or trip owned by the
// catalog.  The booking core never writes it.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – display title used in events and logs.
//  StartsAt       – when the show begins (UTC).
//  IsActive       – false when the catalog has withdrawn the show.
//  BasePriceCents – price applied to seats that carry no price of
//                   their own.
type Show struct {
	ID             uint64    `json:"id"`               // shows.id
	Title          string    `json:"title"`            // shows.title
	StartsAt       time.Time `json:"starts_at"`        // shows.starts_at
	IsActive       bool      `json:"is_active"`        // shows.is_active
	BasePriceCents int64     `json:"base_price_cents"` // shows.base_price_cents
}

// HasStarted reports whether the show start time is at or before now.
func (s Show) HasStarted(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// Package refund decides whether a booking may still be cancelled and how
// much of its price is returned.  Everything here is a pure function of
// its inputs.
package refund

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Tier grants Percentage when a cancellation happens at least
// HoursBeforeShow hours before the show starts.
type Tier struct {
	HoursBeforeShow float64
	Percentage      int
}

// Policy is an ordered refund table plus the minimum notice required to
// cancel at all.
type Policy struct {
	tiers          []Tier
	minNoticeHours float64
}

// NewPolicy copies tiers and orders them highest threshold first.
func NewPolicy(tiers []Tier, minNoticeHours float64) (Policy, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	for _, t := range sorted {
		if t.Percentage < 0 || t.Percentage > 100 {
			return Policy{}, fmt.Errorf("refund tier %v: percentage must be within 0..100", t.HoursBeforeShow)
		}
		if t.HoursBeforeShow < 0 {
			return Policy{}, fmt.Errorf("refund tier %v: negative threshold", t.HoursBeforeShow)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].HoursBeforeShow > sorted[j].HoursBeforeShow
	})
	if minNoticeHours < 0 {
		minNoticeHours = 0
	}
	return Policy{tiers: sorted, minNoticeHours: minNoticeHours}, nil
}

// Tiers returns the table in evaluation order.
func (p Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// RefundPercentage returns the percentage of the first tier whose
// threshold hoursBeforeShow meets, or 0 when none does.
func (p Policy) RefundPercentage(hoursBeforeShow float64) int {
	for _, t := range p.tiers {
		if hoursBeforeShow >= t.HoursBeforeShow {
			return t.Percentage
		}
	}
	return 0
}

// CanCancel reports whether now is at least the minimum notice ahead of
// showTime.
func (p Policy) CanCancel(showTime, now time.Time) bool {
	return HoursUntil(showTime, now) >= p.minNoticeHours
}

// RefundAmount is round(total * percentage / 100), rounding half away
// from zero.
func (p Policy) RefundAmount(totalCents int64, hoursBeforeShow float64) int64 {
	pct := p.RefundPercentage(hoursBeforeShow)
	return int64(math.Round(float64(totalCents) * float64(pct) / 100))
}

// HoursUntil is the signed number of hours from now to t.
func HoursUntil(t, now time.Time) float64 {
	return t.Sub(now).Hours()
}

// ParseTiers reads "hours:percent" pairs separated by commas, e.g.
// "24:100,12:75,2:50,0:0".
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hours, pct, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("refund tier %q: want hours:percent", part)
		}
		h, err := strconv.ParseFloat(strings.TrimSpace(hours), 64)
		if err != nil {
			return nil, fmt.Errorf("refund tier %q: %w", part, err)
		}
		p, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("refund tier %q: %w", part, err)
		}
		tiers = append(tiers, Tier{HoursBeforeShow: h, Percentage: p})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("refund tiers: empty table")
	}
	return tiers, nil
}

package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPolicy(t *testing.T) Policy {
	t.Helper()
	p, err := NewPolicy([]Tier{{0, 0}, {12, 75}, {24, 100}, {2, 50}}, 2)
	require.NoError(t, err)
	return p
}

func TestRefundPercentage(t *testing.T) {
	p := defaultPolicy(t)

	tests := []struct {
		hours float64
		want  int
	}{
		{30, 100},
		{24, 100},
		{18, 75},
		{12, 75},
		{5, 50},
		{2, 50},
		{1, 0},
		{0, 0},
		{-3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.RefundPercentage(tt.hours), "hours=%v", tt.hours)
	}
}

func TestRefundAmount(t *testing.T) {
	p := defaultPolicy(t)

	assert.Equal(t, int64(500), p.RefundAmount(1000, 5))
	assert.Equal(t, int64(1000), p.RefundAmount(1000, 48))
	assert.Equal(t, int64(0), p.RefundAmount(1000, 1))
	// 75% of 999 is 749.25
	assert.Equal(t, int64(749), p.RefundAmount(999, 13))
	// 50% of 1001 is 500.5, rounded up
	assert.Equal(t, int64(501), p.RefundAmount(1001, 3))
}

func TestTiersAreOrderedHighestFirst(t *testing.T) {
	p := defaultPolicy(t)
	tiers := p.Tiers()
	require.Len(t, tiers, 4)
	assert.Equal(t, float64(24), tiers[0].HoursBeforeShow)
	assert.Equal(t, float64(0), tiers[3].HoursBeforeShow)
}

func TestCanCancel(t *testing.T) {
	p := defaultPolicy(t)
	show := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.True(t, p.CanCancel(show, show.Add(-3*time.Hour)))
	assert.True(t, p.CanCancel(show, show.Add(-2*time.Hour)))
	assert.False(t, p.CanCancel(show, show.Add(-90*time.Minute)))
	assert.False(t, p.CanCancel(show, show.Add(time.Hour)))
}

func TestEmptyPolicyRefundsNothing(t *testing.T) {
	p, err := NewPolicy(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, p.RefundPercentage(100))
}

func TestNewPolicyRejectsBadPercentage(t *testing.T) {
	_, err := NewPolicy([]Tier{{24, 120}}, 0)
	assert.Error(t, err)
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("24:100, 12:75,2:50,0:0")
	require.NoError(t, err)
	assert.Equal(t, []Tier{{24, 100}, {12, 75}, {2, 50}, {0, 0}}, tiers)

	_, err = ParseTiers("24-100")
	assert.Error(t, err)
	_, err = ParseTiers("x:10")
	assert.Error(t, err)
	_, err = ParseTiers("")
	assert.Error(t, err)
}

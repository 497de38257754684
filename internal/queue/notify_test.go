package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifierWritesOneEntryPerEvent(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := LogNotifier(log)

	body, err := json.Marshal(BookingConfirmedEvent{BookingID: "b1", Reference: "BK-20260101-ABCDEF", SeatIDs: []uint64{1, 2}, TotalCents: 2000})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), BookingConfirmedQueue, body))

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "b1", entry.Data["booking_id"])
	assert.Equal(t, int64(2000), entry.Data["total_cents"])

	body, err = json.Marshal(ReservationExpiredEvent{ReservationID: "r1", SeatIDs: []uint64{3}})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), ReservationExpiredQueue, body))
	assert.Equal(t, "r1", hook.LastEntry().Data["reservation_id"])
}

func TestLogNotifierRejectsBadInput(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := LogNotifier(log)

	assert.Error(t, h(context.Background(), BookingCancelledQueue, []byte("{not json")))
	assert.Error(t, h(context.Background(), "unknown.queue", []byte("{}")))
}

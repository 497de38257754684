package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/repository/memory"
)

func newStore() *memory.Store {
	s := memory.New(100 * time.Millisecond)
	s.AddShow(model.Show{ID: 1, IsActive: true}, []model.Seat{{ID: 1}, {ID: 2}})
	return s
}

func TestRunInTxCommitsAndRunsHooks(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	var ran bool

	err := repository.RunInTx(ctx, s, func(ctx context.Context, tx repository.Tx) error {
		repository.AfterCommit(ctx, func() { ran = true })
		assert.False(t, ran)
		return tx.InsertReservation(ctx, model.Reservation{ID: "r1", ShowID: 1, Status: model.ReservationActive})
	})
	require.NoError(t, err)
	assert.True(t, ran)

	_, err = s.GetReservation(ctx, "r1")
	assert.NoError(t, err)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	boom := errors.New("boom")
	var ran bool

	err := repository.RunInTx(ctx, s, func(ctx context.Context, tx repository.Tx) error {
		repository.AfterCommit(ctx, func() { ran = true })
		if err := tx.InsertReservation(ctx, model.Reservation{ID: "r1", Status: model.ReservationActive}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)

	_, err = s.GetReservation(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	assert.Panics(t, func() {
		_ = repository.RunInTx(ctx, s, func(ctx context.Context, tx repository.Tx) error {
			if _, err := tx.LockSeats(ctx, 1, []uint64{1}); err != nil {
				return err
			}
			panic("unexpected")
		})
	})

	// the seat lock must have been released by the rollback
	err := repository.RunInTx(ctx, s, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockSeats(ctx, 1, []uint64{1})
		return err
	})
	assert.NoError(t, err)
}

func TestNestedRunInTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	boom := errors.New("boom")

	err := repository.RunInTx(ctx, s, func(ctx context.Context, outer repository.Tx) error {
		err := repository.RunInTx(ctx, s, func(ctx context.Context, inner repository.Tx) error {
			assert.Same(t, outer, inner)
			return inner.InsertReservation(ctx, model.Reservation{ID: "nested", Status: model.ReservationActive})
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetReservation(ctx, "nested")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAfterCommitOutsideTxRunsImmediately(t *testing.T) {
	var ran bool
	repository.AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestRunInTxIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore()

	err := repository.RunInTx(ctx, s, func(txCtx context.Context, tx repository.Tx) error {
		cancel()
		require.Error(t, ctx.Err())
		assert.NoError(t, txCtx.Err())

		seats, err := tx.LockSeats(txCtx, 1, []uint64{1})
		if err != nil {
			return err
		}
		seats[0].Status = model.SeatBooked
		seats[0].BookingID = "b1"
		return tx.UpdateSeats(txCtx, seats)
	})
	require.NoError(t, err)

	seats, err := s.GetSeats(context.Background(), 1, []uint64{1})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, model.SeatBooked, seats[0].Status)
}

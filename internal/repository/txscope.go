package repository

import (
	"context"
	"fmt"
)

type txKey struct{}

// scope is the transaction carried through a context plus the work
// deferred until it commits.
type scope struct {
	tx    Tx
	after []func()
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (Tx, bool) {
	sc, ok := ctx.Value(txKey{}).(*scope)
	if !ok {
		return nil, false
	}
	return sc.tx, true
}

// AfterCommit schedules fn to run once the outermost transaction carried
// by ctx has committed.  Outside a transaction fn runs immediately.  fn
// never runs for a transaction that rolls back.
func AfterCommit(ctx context.Context, fn func()) {
	if sc, ok := ctx.Value(txKey{}).(*scope); ok {
		sc.after = append(sc.after, fn)
		return
	}
	fn()
}

// RunInTx runs fn inside a transaction.  When ctx already carries one,
// fn joins it and the outermost caller decides the outcome.  Otherwise a
// new transaction is opened and is committed if fn returns nil and rolled
// back on every other exit path, panics included.
//
// Once begun, the transaction no longer follows ctx cancellation: a
// client going away mid-request does not abort it after locks are taken.
// The store's bounded lock wait is what limits how long fn can block.
func RunInTx(ctx context.Context, s Store, fn func(ctx context.Context, tx Tx) error) error {
	if sc, ok := ctx.Value(txKey{}).(*scope); ok {
		return fn(ctx, sc.tx)
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sc := &scope{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, sc), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	committed = true

	for _, f := range sc.after {
		f()
	}
	return nil
}

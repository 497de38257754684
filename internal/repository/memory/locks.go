package memory

import (
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/repository"
)

// lockTable provides exclusive row locks with a bounded wait.  A lock is
// re-entrant for the transaction that owns it.
type lockTable struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	owner *tx
	sem   chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{rows: make(map[string]*rowLock)}
}

func (lt *lockTable) acquire(key string, owner *tx, wait time.Duration) error {
	lt.mu.Lock()
	rl, ok := lt.rows[key]
	if !ok {
		rl = &rowLock{sem: make(chan struct{}, 1)}
		lt.rows[key] = rl
	}
	if rl.owner == owner {
		lt.mu.Unlock()
		return nil
	}
	lt.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case rl.sem <- struct{}{}:
		lt.mu.Lock()
		rl.owner = owner
		lt.mu.Unlock()
		return nil
	case <-timer.C:
		return repository.ErrLockTimeout
	}
}

func (lt *lockTable) holds(key string, owner *tx) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	rl, ok := lt.rows[key]
	return ok && rl.owner == owner
}

func (lt *lockTable) release(key string, owner *tx) {
	lt.mu.Lock()
	rl, ok := lt.rows[key]
	if !ok || rl.owner != owner {
		lt.mu.Unlock()
		return
	}
	rl.owner = nil
	lt.mu.Unlock()
	<-rl.sem
}

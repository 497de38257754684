// Package repository defines the transactional store the booking core is
// written against and its MySQL implementation.  The sentinel values
// below let services distinguish store outcomes without looking at
// driver error text.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a show, reservation or booking row does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrLockTimeout is returned when a row lock could not be obtained within
// the configured wait.  Services translate it into a retryable seat
// conflict.
var ErrLockTimeout = errors.New("lock wait timeout")

// ErrDuplicate is returned when an insert collides with an existing key.
var ErrDuplicate = errors.New("duplicate key")

// MySQL server error numbers the store cares about.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// translate maps driver errors onto the sentinels above and leaves
// everything else untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		case mysqlErrDuplicateEntry:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}

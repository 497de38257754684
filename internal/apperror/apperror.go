// Package apperror defines the failures the booking core reports to its
// callers.  Every error carries a stable code and, where seats are
// involved, a per-seat list that a client can render without parsing
// messages.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a class of failure.
type Code string

const (
	CodeSeatConflict       Code = "SEAT_CONFLICT"
	CodeReservationExpired Code = "RESERVATION_EXPIRED"
	CodeSeatNotFound       Code = "SEAT_NOT_FOUND"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeEmptySelection     Code = "EMPTY_SELECTION"
	CodeNotHolder          Code = "NOT_HOLDER"
	CodePriceMismatch      Code = "PRICE_MISMATCH"
	CodeNotFound           Code = "NOT_FOUND"
	CodeCancellationClosed Code = "CANCELLATION_CLOSED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Seat-level reasons reported in SeatIssue.Reason.
const (
	ReasonBooked   = "booked"
	ReasonReserved = "reserved"
	ReasonUnknown  = "unknown"
)

// SeatIssue explains why one seat could not be used.  AvailableAt is set
// for reserved seats and tells the client when the hold lapses.
type SeatIssue struct {
	SeatID      uint64     `json:"seatId"`
	Reason      string     `json:"reason"`
	AvailableAt *time.Time `json:"availableAt,omitempty"`
}

// Error is the single error type returned by the core services.
type Error struct {
	Code    Code
	Message string
	Seats   []SeatIssue
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrSeatConflict       = &Error{Code: CodeSeatConflict}
	ErrReservationExpired = &Error{Code: CodeReservationExpired}
	ErrSeatNotFound       = &Error{Code: CodeSeatNotFound}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrEmptySelection     = &Error{Code: CodeEmptySelection}
	ErrNotHolder          = &Error{Code: CodeNotHolder}
	ErrPriceMismatch      = &Error{Code: CodePriceMismatch}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrCancellationClosed = &Error{Code: CodeCancellationClosed}
	ErrInternal           = &Error{Code: CodeInternal}
)

// New builds an error of the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSeats builds an error of the given code carrying per-seat detail.
func WithSeats(code Code, msg string, seats []SeatIssue) *Error {
	return &Error{Code: code, Message: msg, Seats: seats}
}

// Internal wraps a store or infrastructure failure.  The cause is kept
// for logging; Message stays generic so raw store text never reaches a
// client.
func Internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Message: op + " failed", Err: err}
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// SeatsOf returns the per-seat detail carried by err, if any.
func SeatsOf(err error) []SeatIssue {
	var e *Error
	if errors.As(err, &e) {
		return e.Seats
	}
	return nil
}

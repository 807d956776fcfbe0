package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the booking core.  Callers match them with
// errors.Is; the typed errors below carry details and match the same kinds.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Conflict reasons.
const (
	ReasonAlreadyBooked = "already booked"
	ReasonLockedByOther = "locked by another user"
	ReasonMissingLocks  = "missing or expired locks"
	ReasonContention    = "concurrent update, retry"
	ReasonAlreadyCancel = "booking already cancelled"
	ReasonShowStarted   = "show already started"
)

// ConflictError reports seat contention.  SeatIDs names the offending seats
// when they are known so the caller can retry with a reduced selection.
type ConflictError struct {
	Reason  string
	SeatIDs []uint64
}

func (e *ConflictError) Error() string {
	if len(e.SeatIDs) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s (seats %s)", e.Reason, joinIDs(e.SeatIDs))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidInputError reports a rejected seat selection.
type InvalidInputError struct {
	Message string
	SeatIDs []uint64
}

func (e *InvalidInputError) Error() string {
	if len(e.SeatIDs) == 0 {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid input: %s (seats %s)", e.Message, joinIDs(e.SeatIDs))
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func conflict(reason string, seatIDs []uint64) error {
	return &ConflictError{Reason: reason, SeatIDs: seatIDs}
}

func invalid(msg string, seatIDs []uint64) error {
	return &InvalidInputError{Message: msg, SeatIDs: seatIDs}
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

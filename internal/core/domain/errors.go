package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is wrapped by every InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConfirmInFlight is returned when a confirmation is already running for a flow.
	ErrConfirmInFlight = errors.New("confirmation already in flight")
	// ErrDuplicateBooking is returned when a checkout session already has a booking.
	ErrDuplicateBooking = errors.New("booking already exists for session")
)

// InvalidInputError reports which fee calculator input was rejected.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError is a caller defect: an operation was invoked
// from a state that does not allow it.
type InvalidTransitionError struct {
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies decision failures. None of these are system faults:
// already-accepted, already-declined and event-full are legitimate duplicate
// or late actions that callers surface to the user as-is.
type ErrorKind string

const (
	// KindNotFound means the identity is not on the roster, either a
	// routing bug or a stale link.
	KindNotFound ErrorKind = "not-found"

	// KindAlreadyAccepted means the invitee already holds a terminal
	// accepted status.
	KindAlreadyAccepted ErrorKind = "already-accepted"

	// KindAlreadyDeclined means the invitee already holds a terminal
	// declined status.
	KindAlreadyDeclined ErrorKind = "already-declined"

	// KindEventFull means every spot is already taken by someone else.
	KindEventFull ErrorKind = "event-full"
)

// DecisionError is the classified outcome of a rejected RSVP action.
type DecisionError struct {
	Kind    ErrorKind
	Message string

	// IsEventFull is set on the confirm path when capacity was the
	// reason for rejection.
	IsEventFull bool
}

// Error implements the error interface.
func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the error kind from err, or "" if err is not a
// DecisionError. Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var de *DecisionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func notFoundErr(identity string) *DecisionError {
	return &DecisionError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("no invitee matching %q on this event", identity),
	}
}

func alreadyAcceptedErr(declining bool) *DecisionError {
	msg := "you have already confirmed this invitation"
	if declining {
		msg = "you have already confirmed this invitation; contact the organizer to cancel"
	}
	return &DecisionError{Kind: KindAlreadyAccepted, Message: msg}
}

func alreadyDeclinedErr() *DecisionError {
	return &DecisionError{Kind: KindAlreadyDeclined, Message: "you have already declined this invitation"}
}

func eventFullErr(spots int) *DecisionError {
	msg := "this event has already been confirmed by another invitee"
	if spots > 1 {
		msg = fmt.Sprintf("this event is full (%d spots filled)", spots)
	}
	return &DecisionError{Kind: KindEventFull, Message: msg, IsEventFull: true}
}

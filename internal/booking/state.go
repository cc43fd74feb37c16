// Package booking drives one visitor's booking flow: trip selection, ticket
// count, passenger and card entry, the two payment phases and confirmation.
package booking

import (
	"errors"
	"fmt"
)

type State string

const (
	StateSelecting State = "selecting"
	StateDetails   State = "details"
	StateBooking   State = "booking"
	StateConfirmed State = "confirmed"
)

// Step is the sub-step inside StateBooking.
type Step string

const (
	StepPayment Step = "payment"
	StepOTP     Step = "otp"
)

type Event string

const (
	EventSelect     Event = "select"
	EventProceed    Event = "proceed"
	EventBack       Event = "back"
	EventCancel     Event = "cancel"
	EventAuthorized Event = "authorized"
	EventConfirmed  Event = "confirmed"
	EventStartNew   Event = "start_new"
	EventNavigate   Event = "navigate"
)

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	StateSelecting: {
		EventSelect: StateDetails,
	},
	StateDetails: {
		EventProceed:  StateBooking,
		EventBack:     StateSelecting,
		EventCancel:   StateSelecting,
		EventNavigate: StateSelecting,
	},
	StateBooking: {
		EventBack:       StateDetails,
		EventAuthorized: StateBooking,
		EventConfirmed:  StateConfirmed,
		EventCancel:     StateSelecting,
		EventNavigate:   StateSelecting,
	},
	StateConfirmed: {
		EventStartNew: StateSelecting,
		EventCancel:   StateSelecting,
		EventNavigate: StateSelecting,
	},
}

// Transition returns the state e leads to from s. It has no side effects.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
	}
	return next, nil
}

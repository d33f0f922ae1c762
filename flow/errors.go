package flow

import "errors"

var (
	// ErrSubmissionInFlight is returned when an event is dispatched while a
	// network call from a previous event is still outstanding. The UI is
	// expected to disable resubmission; this is the backstop.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrInvalidTransition is returned when an event is dispatched in a
	// state that does not accept it.
	ErrInvalidTransition = errors.New("event not valid in current flow state")

	// ErrSkipNotAllowed is returned by SkipPasswordChange when policy
	// forbids skipping the forced change.
	ErrSkipNotAllowed = errors.New("skipping the password change is not allowed")
)

package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the trigger is not permitted from
	// the claim's current status. The status is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition for the trigger
	// rejected the decision environment.
	ErrGuardFailed = errors.New("guard condition failed")
)

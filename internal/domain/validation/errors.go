package validation

import "errors"

var (
	ErrInvalidValidationStatus = errors.New("invalid validation status")
	ErrInvalidLabStatus        = errors.New("invalid lab status")
	ErrInvalidPriority         = errors.New("invalid priority")
	ErrInvalidTransition       = errors.New("invalid validation status transition")

	ErrCapacityExceeded = errors.New("laboratory capacity exceeded")
	ErrLoadUnderflow    = errors.New("laboratory load cannot go below zero")
	ErrLabUnavailable   = errors.New("laboratory is not available")
	ErrLabMismatch      = errors.New("report lab does not match the assigned lab")
	ErrNotAssigned      = errors.New("validation has no active assignment")
	ErrNoLabsAvailable  = errors.New("no laboratories available")

	// ErrInvalidResult marks a data point that cannot be compared numerically.
	// It is absorbed into PointError and never returned by the scoring functions.
	ErrInvalidResult = errors.New("invalid data point result")
)

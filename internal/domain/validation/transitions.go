package validation

import "fmt"

var allowedTransitions = map[ValidationStatus][]ValidationStatus{
	StatusPending:              {StatusInAnalysis, StatusExpired},
	StatusInAnalysis:           {StatusValidated, StatusValidatedWithRemarks, StatusRejected, StatusExpired},
	StatusValidated:            {StatusExpired},
	StatusValidatedWithRemarks: {StatusExpired},
	StatusRejected:             {StatusExpired},
}

func CanTransition(from, to ValidationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is not a lifecycle edge.
func CheckTransition(from, to ValidationStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidValidationStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

package httpapi

import (
	"net/http"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

var (
	notFoundErrors = []error{
		ports.ErrValidationNotFound,
		ports.ErrLabNotFound,
		ports.ErrAssignmentNotFound,
		ports.ErrReportNotFound,
		labvalidation.ErrNoTrustScore,
	}
	badRequestErrors = []error{
		labvalidation.ErrInvalidInput,
		validation.ErrInvalidPriority,
		validation.ErrInvalidLabStatus,
		validation.ErrInvalidValidationStatus,
	}
	conflictErrors = []error{
		validation.ErrCapacityExceeded,
		validation.ErrLoadUnderflow,
		validation.ErrInvalidTransition,
		validation.ErrLabUnavailable,
		validation.ErrLabMismatch,
		validation.ErrNotAssigned,
		ports.ErrStatusConflict,
		ports.ErrAlreadyAssigned,
		ports.ErrReportExists,
		ports.ErrTaxIDTaken,
	}
)

// statusFor maps service errors to HTTP status codes; anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errs.IsAny(err, notFoundErrors...):
		return http.StatusNotFound
	case errs.IsAny(err, badRequestErrors...):
		return http.StatusBadRequest
	case errs.IsAny(err, conflictErrors...):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

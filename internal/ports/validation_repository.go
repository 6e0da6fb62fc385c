package ports

import (
	"context"
	"errors"
	"time"

	"trustlab/internal/domain/validation"
)

var (
	ErrValidationNotFound = errors.New("validation request not found")
	ErrAssignmentNotFound = errors.New("lab assignment not found")
	ErrReportNotFound     = errors.New("lab report not found")
	ErrAlreadyAssigned    = errors.New("validation request already has an assignment")
	ErrReportExists       = errors.New("validation request already has a report")
	// ErrStatusConflict is returned when a compare-and-set status update finds a different current status.
	ErrStatusConflict = errors.New("validation status changed concurrently")
)

type ValidationFilter struct {
	Status    validation.ValidationStatus
	ProductID string
	Limit     int
}

type ValidationRepository interface {
	CreateValidationRequest(ctx context.Context, req validation.ValidationRequest) error
	GetValidationRequest(ctx context.Context, id string) (validation.ValidationRequest, error)
	ListValidationRequests(ctx context.Context, filter ValidationFilter) ([]validation.ValidationRequest, error)
	// UpdateValidationStatus moves from -> to only if the stored status still equals from.
	UpdateValidationStatus(ctx context.Context, id string, from, to validation.ValidationStatus, updatedAt time.Time) error

	CreateAssignment(ctx context.Context, assignment validation.LabAssignment) error
	GetAssignment(ctx context.Context, validationID string) (validation.LabAssignment, error)
	CompleteAssignment(ctx context.Context, validationID string, completedAt time.Time) error

	CreateReport(ctx context.Context, report validation.LabReport) error
	GetReport(ctx context.Context, validationID string) (validation.LabReport, error)
	CountReportsIssuedIn(ctx context.Context, year int) (int, error)

	AppendValidationResults(ctx context.Context, results []validation.ValidationResult) error
	ListValidationResults(ctx context.Context, validationID string) ([]validation.ValidationResult, error)

	AppendTrustScore(ctx context.Context, record validation.TrustScoreRecord) (validation.TrustScoreRecord, error)
	ListTrustScores(ctx context.Context, productID string, limit int) ([]validation.TrustScoreRecord, error)
}

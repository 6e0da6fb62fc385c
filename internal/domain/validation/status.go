package validation

import (
	"fmt"
	"strings"
)

// ValidationStatus is the lifecycle state of a validation request.
type ValidationStatus string

const (
	StatusPending              ValidationStatus = "pending"
	StatusInAnalysis           ValidationStatus = "in_analysis"
	StatusValidated            ValidationStatus = "validated"
	StatusValidatedWithRemarks ValidationStatus = "validated_with_remarks"
	StatusRejected             ValidationStatus = "rejected"
	StatusExpired              ValidationStatus = "expired"
)

func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInAnalysis, StatusValidated, StatusValidatedWithRemarks, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Concluded reports whether a lab report has already decided the request.
func (s ValidationStatus) Concluded() bool {
	return s == StatusValidated || s == StatusValidatedWithRemarks || s == StatusRejected
}

func ParseValidationStatus(raw string) (ValidationStatus, error) {
	s := ValidationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidValidationStatus, raw)
	}
	return s, nil
}

// LabStatus is the availability of a laboratory.
type LabStatus string

const (
	LabAvailable LabStatus = "available"
	LabBusy      LabStatus = "busy"
	LabOffline   LabStatus = "offline"
)

func (s LabStatus) Valid() bool {
	switch s {
	case LabAvailable, LabBusy, LabOffline:
		return true
	}
	return false
}

func ParseLabStatus(raw string) (LabStatus, error) {
	s := LabStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabStatus, raw)
	}
	return s, nil
}

// PointStatus classifies one measured data point against its declared value.
type PointStatus string

const (
	PointValidated            PointStatus = "validated"
	PointValidatedWithRemarks PointStatus = "validated_with_remarks"
	PointRejected             PointStatus = "rejected"
	PointNotTested            PointStatus = "not_tested"
	PointError                PointStatus = "error"
)

func (s PointStatus) Valid() bool {
	switch s {
	case PointValidated, PointValidatedWithRemarks, PointRejected, PointNotTested, PointError:
		return true
	}
	return false
}

// Priority of a validation request.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority defaults an empty value to normal.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

// AssignmentStatus is the state of a lab assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentCompleted AssignmentStatus = "completed"
)

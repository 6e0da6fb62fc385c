package ports

import (
	"context"
	"errors"

	"trustlab/internal/domain/validation"
)

var (
	ErrLabNotFound = errors.New("laboratory not found")
	ErrTaxIDTaken  = errors.New("tax id is registered to another laboratory")
)

type LabFilter struct {
	Status    validation.LabStatus
	Specialty string
}

type LabRepository interface {
	// ListAvailableLabs returns labs with status available and load below capacity.
	ListAvailableLabs(ctx context.Context) ([]validation.Laboratory, error)
	ListLabs(ctx context.Context, filter LabFilter) ([]validation.Laboratory, error)
	GetLab(ctx context.Context, labID string) (validation.Laboratory, error)
	// UpsertLab inserts or replaces a lab's descriptive fields; current load is never overwritten.
	UpsertLab(ctx context.Context, lab validation.Laboratory) (validation.Laboratory, error)
	UpdateLabStatus(ctx context.Context, labID string, status validation.LabStatus) error
	// UpdateLabLoad atomically adds delta to current load, rejecting any result
	// outside [0, capacity] with validation.ErrCapacityExceeded or validation.ErrLoadUnderflow.
	UpdateLabLoad(ctx context.Context, labID string, delta int) (validation.Laboratory, error)
}

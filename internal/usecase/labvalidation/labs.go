package labvalidation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

// ListLaboratories returns labs ordered by rating, best first.
func (s *Service) ListLaboratories(ctx context.Context, filter ports.LabFilter) ([]validation.Laboratory, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	labs, err := s.labs.ListLabs(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list laboratories")
	}
	return labs, nil
}

// RegisterLab inserts or updates a laboratory without touching its current load.
func (s *Service) RegisterLab(ctx context.Context, lab validation.Laboratory) (validation.Laboratory, error) {
	if err := s.ready(ctx); err != nil {
		return validation.Laboratory{}, err
	}
	if err := checkLab(&lab); err != nil {
		return validation.Laboratory{}, err
	}

	stored, err := s.labs.UpsertLab(ctx, lab)
	if err != nil {
		return validation.Laboratory{}, errs.Wrap(err, "register laboratory")
	}
	logging.Info(s.logCtx(ctx, slog.String("lab_id", stored.ID)), "laboratory registered", slog.Int("capacity", stored.Capacity))
	return stored, nil
}

// SeedLabs registers every lab in one transaction.
func (s *Service) SeedLabs(ctx context.Context, labs []validation.Laboratory) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	for i := range labs {
		if err := checkLab(&labs[i]); err != nil {
			return 0, fmt.Errorf("lab %d: %w", i, err)
		}
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, lab := range labs {
			if _, err := s.labs.UpsertLab(txCtx, lab); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return 0, errs.Wrap(err, "seed laboratories")
	}

	logging.Info(s.logCtx(ctx), "laboratories seeded", slog.Int("count", len(labs)))
	return len(labs), nil
}

func (s *Service) SetLabStatus(ctx context.Context, labID string, rawStatus string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	status, err := validation.ParseLabStatus(rawStatus)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(labID)
	if err := s.labs.UpdateLabStatus(ctx, id, status); err != nil {
		return errs.Wrap(err, "update laboratory status")
	}
	logging.Info(s.logCtx(ctx, slog.String("lab_id", id)), "laboratory status changed", slog.String("status", string(status)))
	return nil
}

func checkLab(lab *validation.Laboratory) error {
	lab.ID = strings.TrimSpace(lab.ID)
	lab.Name = strings.TrimSpace(lab.Name)
	if lab.ID == "" {
		return fmt.Errorf("%w: laboratory id is required", ErrInvalidInput)
	}
	if lab.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	if lab.Rating < 0 || lab.Rating > 5 {
		return fmt.Errorf("%w: rating must be within [0, 5]", ErrInvalidInput)
	}
	if lab.Status == "" {
		lab.Status = validation.LabAvailable
	}
	if !lab.Status.Valid() {
		return fmt.Errorf("%w: %q", validation.ErrInvalidLabStatus, lab.Status)
	}
	return nil
}

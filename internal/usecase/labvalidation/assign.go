package labvalidation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

type AssignLabInput struct {
	ValidationID string
	LabID        string
	// Price and EstimatedDays fall back to the lab's current quote when <= 0.
	Price         float64
	EstimatedDays int
}

type AssignLabResult struct {
	AssignmentID        string
	ValidationID        string
	LabID               string
	LabName             string
	Price               float64
	EstimatedDays       int
	AssignedAt          time.Time
	EstimatedCompletion time.Time
}

// AssignLab reserves one unit of the lab's capacity and moves the request to in_analysis.
// Either every write happens or none does.
func (s *Service) AssignLab(ctx context.Context, input AssignLabInput) (AssignLabResult, error) {
	if err := s.ready(ctx); err != nil {
		return AssignLabResult{}, err
	}

	validationID := strings.TrimSpace(input.ValidationID)
	labID := strings.TrimSpace(input.LabID)
	if validationID == "" || labID == "" {
		return AssignLabResult{}, fmt.Errorf("%w: validation_id and lab_id are required", ErrInvalidInput)
	}

	logCtx := s.logCtx(ctx, slog.String("validation_id", validationID), slog.String("lab_id", labID))
	now := s.now().UTC()
	out := AssignLabResult{
		AssignmentID: s.newID(),
		ValidationID: validationID,
		LabID:        labID,
		AssignedAt:   now,
	}
	var req validation.ValidationRequest

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.validations.GetValidationRequest(txCtx, validationID)
		if err != nil {
			return err
		}
		if err := validation.CheckTransition(req.Status, validation.StatusInAnalysis); err != nil {
			return err
		}

		lab, err := s.labs.GetLab(txCtx, labID)
		if err != nil {
			return err
		}
		if lab.Status != validation.LabAvailable {
			return fmt.Errorf("%w: %s is %s", validation.ErrLabUnavailable, lab.ID, lab.Status)
		}

		out.LabName = lab.Name
		out.Price = input.Price
		out.EstimatedDays = input.EstimatedDays
		if out.Price <= 0 || out.EstimatedDays <= 0 {
			quote := validation.Quote(lab, req, s.currentCatalog())
			if out.Price <= 0 {
				out.Price = quote.Price
			}
			if out.EstimatedDays <= 0 {
				out.EstimatedDays = quote.EstimatedDays
			}
		}

		if _, err := s.labs.UpdateLabLoad(txCtx, lab.ID, 1); err != nil {
			return err
		}

		if err := s.validations.CreateAssignment(txCtx, validation.LabAssignment{
			ID:            out.AssignmentID,
			ValidationID:  validationID,
			LabID:         lab.ID,
			Status:        validation.AssignmentAssigned,
			Price:         out.Price,
			EstimatedDays: out.EstimatedDays,
			AssignedAt:    now,
		}); err != nil {
			return err
		}

		return s.validations.UpdateValidationStatus(txCtx, validationID, req.Status, validation.StatusInAnalysis, now)
	})
	if err != nil {
		logging.Warn(logCtx, "assign laboratory failed", slog.Any("err", errs.Loggable(err)))
		return AssignLabResult{}, errs.Wrap(err, "assign laboratory")
	}

	out.EstimatedCompletion = now.AddDate(0, 0, out.EstimatedDays)
	logging.Info(
		logCtx,
		"laboratory assigned",
		slog.String("assignment_id", out.AssignmentID),
		slog.Float64("price", out.Price),
		slog.Int("estimated_days", out.EstimatedDays),
	)

	s.notifyAssigned(ctx, req, out)
	return out, nil
}

func (s *Service) notifyAssigned(ctx context.Context, req validation.ValidationRequest, out AssignLabResult) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.LabAssigned(ctx, ports.LabAssignedEvent{
		ValidationID:  out.ValidationID,
		LabID:         out.LabID,
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		DataPoints:    req.DataPoints,
		Price:         out.Price,
		EstimatedDays: out.EstimatedDays,
		AssignedAt:    out.AssignedAt,
	})
	if err != nil {
		logging.Warn(s.logCtx(ctx, slog.String("lab_id", out.LabID)), "notify laboratory failed", slog.Any("err", errs.Loggable(err)))
	}
}

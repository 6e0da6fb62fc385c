package labvalidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

type CreateRequestInput struct {
	ProductID   string
	ProductName string
	BrandID     string
	BrandName   string
	Claims      []string
	DataPoints  []string
	Priority    string
}

type CreateRequestResult struct {
	ValidationID string
	Status       validation.ValidationStatus
	Options      []validation.LabOption
}

type MarketplaceResult struct {
	ValidationID   string
	Options        []validation.LabOption
	Recommendation *validation.LabOption
}

// CreateValidationRequest stores a pending request and returns its first lab options.
func (s *Service) CreateValidationRequest(ctx context.Context, input CreateRequestInput) (CreateRequestResult, error) {
	if err := s.ready(ctx); err != nil {
		return CreateRequestResult{}, err
	}

	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return CreateRequestResult{}, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	}
	priority, err := validation.ParsePriority(input.Priority)
	if err != nil {
		return CreateRequestResult{}, err
	}

	now := s.now().UTC()
	req := validation.ValidationRequest{
		ID:          s.newID(),
		ProductID:   productID,
		ProductName: strings.TrimSpace(input.ProductName),
		BrandID:     strings.TrimSpace(input.BrandID),
		BrandName:   strings.TrimSpace(input.BrandName),
		Claims:      compactStrings(input.Claims),
		DataPoints:  compactStrings(input.DataPoints),
		Status:      validation.StatusPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	logCtx := s.logCtx(ctx, slog.String("validation_id", req.ID))
	if err := s.validations.CreateValidationRequest(ctx, req); err != nil {
		logging.Error(logCtx, "create validation request failed", slog.Any("err", errs.Loggable(err)))
		return CreateRequestResult{}, errs.Wrap(err, "create validation request")
	}

	options, err := s.matchLabs(ctx, req)
	if err != nil {
		return CreateRequestResult{}, err
	}

	logging.Info(
		logCtx,
		"validation request created",
		slog.String("product_id", req.ProductID),
		slog.Int("data_points", len(req.DataPoints)),
		slog.String("priority", string(req.Priority)),
		slog.Int("lab_options", len(options)),
	)
	return CreateRequestResult{
		ValidationID: req.ID,
		Status:       req.Status,
		Options:      options,
	}, nil
}

// Marketplace ranks the labs that can currently take the request.
func (s *Service) Marketplace(ctx context.Context, validationID string) (MarketplaceResult, error) {
	if err := s.ready(ctx); err != nil {
		return MarketplaceResult{}, err
	}

	req, err := s.validations.GetValidationRequest(ctx, strings.TrimSpace(validationID))
	if err != nil {
		return MarketplaceResult{}, err
	}

	options, err := s.matchLabs(ctx, req)
	if err != nil {
		return MarketplaceResult{}, err
	}

	out := MarketplaceResult{ValidationID: req.ID, Options: options}
	if len(options) > 0 {
		best := options[0]
		out.Recommendation = &best
	}
	return out, nil
}

func (s *Service) ListValidations(ctx context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	items, err := s.validations.ListValidationRequests(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list validation requests")
	}
	return items, nil
}

// ExpireValidation moves a request to expired. An open assignment is closed and
// its reserved capacity released in the same transaction.
func (s *Service) ExpireValidation(ctx context.Context, validationID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	id := strings.TrimSpace(validationID)
	logCtx := s.logCtx(ctx, slog.String("validation_id", id))
	now := s.now().UTC()

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		req, err := s.validations.GetValidationRequest(txCtx, id)
		if err != nil {
			return err
		}
		if err := validation.CheckTransition(req.Status, validation.StatusExpired); err != nil {
			return err
		}

		if req.Status == validation.StatusInAnalysis {
			assignment, err := s.validations.GetAssignment(txCtx, id)
			switch {
			case errors.Is(err, ports.ErrAssignmentNotFound):
			case err != nil:
				return err
			case assignment.Status == validation.AssignmentAssigned:
				if err := s.validations.CompleteAssignment(txCtx, id, now); err != nil {
					return err
				}
				if _, err := s.labs.UpdateLabLoad(txCtx, assignment.LabID, -1); err != nil {
					return errs.Wrapf(err, "release capacity of %s", assignment.LabID)
				}
			}
		}

		return s.validations.UpdateValidationStatus(txCtx, id, req.Status, validation.StatusExpired, now)
	})
	if err != nil {
		logging.Warn(logCtx, "expire validation failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "expire validation")
	}

	logging.Info(logCtx, "validation expired")
	return nil
}

func (s *Service) matchLabs(ctx context.Context, req validation.ValidationRequest) ([]validation.LabOption, error) {
	labs, err := s.labs.ListAvailableLabs(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list available laboratories")
	}
	return validation.FindMatchingLabs(req, labs, s.currentCatalog()), nil
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if v := strings.TrimSpace(raw); v != "" {
			out = append(out, v)
		}
	}
	return out
}

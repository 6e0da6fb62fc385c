package labvalidation

import (
	"context"
	"errors"
	"strings"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

type ReportSummary struct {
	ReportNumber string
	LabID        string
	IssuedAt     string
	ExpiresAt    string
	Hash         string
}

type ValidationStatusView struct {
	Request    validation.ValidationRequest
	Assignment *validation.LabAssignment
	Report     *ReportSummary
	Results    []validation.ValidationResult
	// TrustScore is the product's latest score, nil before the first report.
	TrustScore *float64
}

func (s *Service) GetValidationStatus(ctx context.Context, validationID string) (ValidationStatusView, error) {
	if err := s.ready(ctx); err != nil {
		return ValidationStatusView{}, err
	}

	id := strings.TrimSpace(validationID)
	req, err := s.validations.GetValidationRequest(ctx, id)
	if err != nil {
		return ValidationStatusView{}, err
	}
	view := ValidationStatusView{Request: req}

	assignment, err := s.validations.GetAssignment(ctx, id)
	switch {
	case err == nil:
		view.Assignment = &assignment
	case !errors.Is(err, ports.ErrAssignmentNotFound):
		return ValidationStatusView{}, errs.Wrap(err, "get lab assignment")
	}

	report, err := s.validations.GetReport(ctx, id)
	switch {
	case err == nil:
		view.Report = &ReportSummary{
			ReportNumber: report.ReportNumber,
			LabID:        report.LabID,
			IssuedAt:     report.IssuedAt.UTC().Format(timeLayout),
			ExpiresAt:    report.ExpiresAt.UTC().Format(timeLayout),
			Hash:         report.Hash,
		}
	case !errors.Is(err, ports.ErrReportNotFound):
		return ValidationStatusView{}, errs.Wrap(err, "get lab report")
	}

	view.Results, err = s.validations.ListValidationResults(ctx, id)
	if err != nil {
		return ValidationStatusView{}, errs.Wrap(err, "list validation results")
	}

	latest, err := s.LatestTrustScore(ctx, req.ProductID)
	switch {
	case err == nil:
		score := latest.Score
		view.TrustScore = &score
	case !errors.Is(err, ErrNoTrustScore):
		return ValidationStatusView{}, err
	}
	return view, nil
}

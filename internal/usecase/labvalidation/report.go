package labvalidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

// firstReportSeq keeps report numbers four digits wide: LAB-2025-1001, LAB-2025-1002, ...
const firstReportSeq = 1001

type UploadReportInput struct {
	ValidationID string
	LabID        string
	ReportFile   string
	Methodology  string
	Observations string
	// Results keep the order in which the lab listed its data points.
	Results []validation.PointResult
}

type UploadReportResult struct {
	ReportID      string
	ReportNumber  string
	Hash          string
	OverallStatus validation.ValidationStatus
	TrustScore    float64
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Results       []validation.ValidationResult
}

type ReportVerification struct {
	ValidationID string
	ReportNumber string
	Hash         string
	Valid        bool
	Expired      bool
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// UploadReport records a lab's report, classifies every data point, concludes the
// request, releases the lab's capacity and appends a trust score, all in one transaction.
func (s *Service) UploadReport(ctx context.Context, input UploadReportInput) (UploadReportResult, error) {
	if err := s.ready(ctx); err != nil {
		return UploadReportResult{}, err
	}

	validationID := strings.TrimSpace(input.ValidationID)
	labID := strings.TrimSpace(input.LabID)
	if validationID == "" || labID == "" {
		return UploadReportResult{}, fmt.Errorf("%w: validation_id and lab_id are required", ErrInvalidInput)
	}
	results, err := normalizeResults(input.Results)
	if err != nil {
		return UploadReportResult{}, err
	}

	logCtx := s.logCtx(ctx, slog.String("validation_id", validationID), slog.String("lab_id", labID))
	issuedAt := s.now().UTC()
	out := UploadReportResult{
		ReportID:  s.newID(),
		IssuedAt:  issuedAt,
		ExpiresAt: validation.ReportExpiry(issuedAt),
	}
	var req validation.ValidationRequest

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.validations.GetValidationRequest(txCtx, validationID)
		if err != nil {
			return err
		}
		if req.Status != validation.StatusInAnalysis {
			return fmt.Errorf("%w: report requires %s, request is %s", validation.ErrInvalidTransition, validation.StatusInAnalysis, req.Status)
		}

		assignment, err := s.validations.GetAssignment(txCtx, validationID)
		if errors.Is(err, ports.ErrAssignmentNotFound) {
			return validation.ErrNotAssigned
		}
		if err != nil {
			return err
		}
		if assignment.Status != validation.AssignmentAssigned {
			return fmt.Errorf("%w: assignment is %s", validation.ErrNotAssigned, assignment.Status)
		}
		if assignment.LabID != labID {
			return fmt.Errorf("%w: assigned to %s", validation.ErrLabMismatch, assignment.LabID)
		}

		issued, err := s.validations.CountReportsIssuedIn(txCtx, issuedAt.Year())
		if err != nil {
			return err
		}
		out.ReportNumber = validation.FormatReportNumber(issuedAt, firstReportSeq+issued)
		out.Hash = validation.ReportHash(out.ReportNumber, validationID, issuedAt)

		if err := s.validations.CreateReport(txCtx, validation.LabReport{
			ID:           out.ReportID,
			ValidationID: validationID,
			LabID:        labID,
			ReportNumber: out.ReportNumber,
			ReportFile:   strings.TrimSpace(input.ReportFile),
			Results:      results,
			Methodology:  input.Methodology,
			Observations: input.Observations,
			IssuedAt:     issuedAt,
			ExpiresAt:    out.ExpiresAt,
			Hash:         out.Hash,
		}); err != nil {
			return err
		}

		statuses := make([]validation.PointStatus, 0, len(results))
		out.Results = make([]validation.ValidationResult, 0, len(results))
		for _, res := range results {
			status := validation.DeterminePointStatus(res.Declared, res.Measured, res.Tolerance)
			statuses = append(statuses, status)
			out.Results = append(out.Results, validation.ValidationResult{
				ID:            s.newID(),
				ValidationID:  validationID,
				DataPoint:     res.DataPoint,
				DeclaredValue: res.Declared,
				MeasuredValue: res.Measured,
				Unit:          res.Unit,
				Status:        status,
				Tolerance:     res.Tolerance,
				Remarks:       res.Remarks,
			})
		}
		if err := s.validations.AppendValidationResults(txCtx, out.Results); err != nil {
			return err
		}

		out.OverallStatus = validation.DetermineOverallStatus(statuses)
		if err := validation.CheckTransition(req.Status, out.OverallStatus); err != nil {
			return err
		}
		if err := s.validations.UpdateValidationStatus(txCtx, validationID, req.Status, out.OverallStatus, issuedAt); err != nil {
			return err
		}

		if err := s.validations.CompleteAssignment(txCtx, validationID, issuedAt); err != nil {
			return err
		}
		lab, err := s.labs.UpdateLabLoad(txCtx, labID, -1)
		if err != nil {
			return errs.Wrapf(err, "release capacity of %s", labID)
		}

		quality := validation.QualityOf(lab)
		score := validation.ComputeTrustScore(statuses, &quality)
		if _, err := s.validations.AppendTrustScore(txCtx, validation.TrustScoreRecord{
			ProductID:    req.ProductID,
			ValidationID: validationID,
			Score:        score.Score,
			Components:   score.Components(),
			CalculatedAt: issuedAt,
		}); err != nil {
			return err
		}
		out.TrustScore = score.Score
		return nil
	})
	if err != nil {
		logging.Warn(logCtx, "upload report failed", slog.Any("err", errs.Loggable(err)))
		return UploadReportResult{}, errs.Wrap(err, "upload report")
	}

	logging.Info(
		logCtx,
		"lab report processed",
		slog.String("report_number", out.ReportNumber),
		slog.String("overall_status", string(out.OverallStatus)),
		slog.Float64("trust_score", out.TrustScore),
		slog.Int("results", len(out.Results)),
	)

	s.deleteCacheBestEffort(ctx, cacheLatestTrustScoreKey(req.ProductID))
	s.notifyConcluded(ctx, req, labID, out)
	return out, nil
}

// VerifyReport recomputes the report hash from its stored fields.
func (s *Service) VerifyReport(ctx context.Context, validationID string) (ReportVerification, error) {
	if err := s.ready(ctx); err != nil {
		return ReportVerification{}, err
	}

	report, err := s.validations.GetReport(ctx, strings.TrimSpace(validationID))
	if err != nil {
		return ReportVerification{}, err
	}
	return ReportVerification{
		ValidationID: report.ValidationID,
		ReportNumber: report.ReportNumber,
		Hash:         report.Hash,
		Valid:        validation.VerifyReportHash(report),
		Expired:      !s.now().Before(report.ExpiresAt),
		IssuedAt:     report.IssuedAt,
		ExpiresAt:    report.ExpiresAt,
	}, nil
}

func (s *Service) notifyConcluded(ctx context.Context, req validation.ValidationRequest, labID string, out UploadReportResult) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.ValidationConcluded(ctx, ports.ValidationConcludedEvent{
		ValidationID:  req.ID,
		ProductID:     req.ProductID,
		LabID:         labID,
		OverallStatus: string(out.OverallStatus),
		TrustScore:    out.TrustScore,
		ReportNumber:  out.ReportNumber,
		ConcludedAt:   out.IssuedAt,
	})
	if err != nil {
		logging.Warn(s.logCtx(ctx, slog.String("lab_id", labID)), "notify validation concluded failed", slog.Any("err", errs.Loggable(err)))
	}
}

func normalizeResults(in []validation.PointResult) ([]validation.PointResult, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]validation.PointResult, 0, len(in))
	for _, res := range in {
		res.DataPoint = strings.TrimSpace(res.DataPoint)
		if res.DataPoint == "" {
			return nil, fmt.Errorf("%w: result without data point name", ErrInvalidInput)
		}
		if _, dup := seen[res.DataPoint]; dup {
			return nil, fmt.Errorf("%w: duplicate data point %q", ErrInvalidInput, res.DataPoint)
		}
		seen[res.DataPoint] = struct{}{}
		out = append(out, res)
	}
	return out, nil
}

package labvalidation

import (
	"context"
	"log/slog"
	"strconv"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
)

const (
	simulatedUnit         = "mg/100g"
	simulatedTolerance    = "5"
	simulatedMethodology  = "AOAC 2011.25"
	simulatedObservations = "All tests performed according to ISO 17025 standards"
	simulatedRemarks      = "Within acceptable range"
)

type SimulationResult struct {
	Success      bool
	ValidationID string
	LabID        string
	LabAssigned  string
	ReportNumber string
	TrustScore   float64
	Status       validation.ValidationStatus
	// Reason explains an unsuccessful run, for example when no lab is available.
	Reason string
}

// Simulate runs request, assignment and a synthetic report end to end against the best lab.
// Declared values are drawn from [90, 110) and measured values stay within ±5% of them.
func (s *Service) Simulate(ctx context.Context, input CreateRequestInput) (SimulationResult, error) {
	created, err := s.CreateValidationRequest(ctx, input)
	if err != nil {
		return SimulationResult{}, err
	}

	out := SimulationResult{ValidationID: created.ValidationID, Status: created.Status}
	if len(created.Options) == 0 {
		out.Reason = validation.ErrNoLabsAvailable.Error()
		logging.Info(s.logCtx(ctx, slog.String("validation_id", created.ValidationID)), "simulation stopped: no laboratories available")
		return out, nil
	}

	best := created.Options[0]
	if _, err := s.AssignLab(ctx, AssignLabInput{
		ValidationID:  created.ValidationID,
		LabID:         best.LabID,
		Price:         best.Price,
		EstimatedDays: best.EstimatedDays,
	}); err != nil {
		// the best lab may fill up or go offline between matching and assignment
		if errs.IsAny(err, validation.ErrCapacityExceeded, validation.ErrLabUnavailable) {
			out.LabID = best.LabID
			out.Reason = errs.Root(err).Error()
			logging.Info(
				s.logCtx(ctx, slog.String("validation_id", created.ValidationID), slog.String("lab_id", best.LabID)),
				"simulation stopped: recommended laboratory cannot take the request",
				slog.String("reason", out.Reason),
			)
			return out, nil
		}
		return SimulationResult{}, errs.Wrap(err, "simulate assignment")
	}

	req, err := s.validations.GetValidationRequest(ctx, created.ValidationID)
	if err != nil {
		return SimulationResult{}, errs.Wrap(err, "reload validation request")
	}

	report, err := s.UploadReport(ctx, UploadReportInput{
		ValidationID: created.ValidationID,
		LabID:        best.LabID,
		Methodology:  simulatedMethodology,
		Observations: simulatedObservations,
		Results:      s.mockResults(req.DataPoints),
	})
	if err != nil {
		return SimulationResult{}, errs.Wrap(err, "simulate report upload")
	}

	out.Success = true
	out.LabID = best.LabID
	out.LabAssigned = best.LabName
	out.ReportNumber = report.ReportNumber
	out.TrustScore = report.TrustScore
	out.Status = report.OverallStatus
	return out, nil
}

func (s *Service) mockResults(dataPoints []string) []validation.PointResult {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	results := make([]validation.PointResult, 0, len(dataPoints))
	seen := make(map[string]struct{}, len(dataPoints))
	for _, point := range dataPoints {
		if _, dup := seen[point]; dup {
			continue
		}
		seen[point] = struct{}{}

		declared := 90 + s.rng.Float64()*20
		measured := declared * (0.95 + s.rng.Float64()*0.10)
		results = append(results, validation.PointResult{
			DataPoint: point,
			Declared:  strconv.FormatFloat(declared, 'f', -1, 64),
			Measured:  strconv.FormatFloat(measured, 'f', -1, 64),
			Unit:      simulatedUnit,
			Tolerance: simulatedTolerance,
			Remarks:   simulatedRemarks,
		})
	}
	return results
}

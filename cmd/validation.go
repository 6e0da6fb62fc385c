package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trustlab/internal/bootstrap"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/infrastructure/seed"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

var validationCmd = &cobra.Command{
	Use:   "validation",
	Short: "Run the laboratory validation lifecycle",
}

var validationRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Create a validation request and show matching laboratories",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		out, err := svc.CreateValidationRequest(ctx, requestInputFromFlags(cmd))
		if err != nil {
			logging.Error(ctx, "create validation request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create validation request")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created validation: %s status=%s\n", out.ValidationID, out.Status); err != nil {
			return errs.Wrap(err, "write request output")
		}
		return writeOptions(cmd, out.Options)
	}),
}

var validationMarketplaceCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Show ranked laboratory options for a validation",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		out, err := svc.Marketplace(ctx, id)
		if err != nil {
			logging.Error(ctx, "load marketplace failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load marketplace")
		}

		if out.Recommendation != nil {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "recommendation: %s (%s)\n", out.Recommendation.LabID, out.Recommendation.LabName); err != nil {
				return errs.Wrap(err, "write marketplace output")
			}
		}
		return writeOptions(cmd, out.Options)
	}),
}

var validationAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a laboratory to a pending validation",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		labID, _ := cmd.Flags().GetString("lab")
		price, _ := cmd.Flags().GetFloat64("price")
		days, _ := cmd.Flags().GetInt("days")

		out, err := svc.AssignLab(ctx, labvalidation.AssignLabInput{
			ValidationID:  id,
			LabID:         labID,
			Price:         price,
			EstimatedDays: days,
		})
		if err != nil {
			logging.Error(ctx, "assign laboratory failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "assign laboratory")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"assigned %s to %s: assignment=%s price=%.2f estimated_days=%d estimated_completion=%s\n",
			out.LabID,
			out.ValidationID,
			out.AssignmentID,
			out.Price,
			out.EstimatedDays,
			out.EstimatedCompletion.Format(time.DateOnly),
		); err != nil {
			return errs.Wrap(err, "write assign output")
		}
		return nil
	}),
}

var validationUploadReportCmd = &cobra.Command{
	Use:   "upload-report",
	Short: "Record a laboratory report and compute the trust score",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := uploadInputFromFlags(cmd)
		if err != nil {
			return err
		}

		out, err := svc.UploadReport(ctx, input)
		if err != nil {
			logging.Error(ctx, "upload report failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "upload report")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"report %s: overall_status=%s trust_score=%.1f expires_at=%s\nhash=%s\n",
			out.ReportNumber,
			out.OverallStatus,
			out.TrustScore,
			out.ExpiresAt.Format(time.DateOnly),
			out.Hash,
		); err != nil {
			return errs.Wrap(err, "write upload output")
		}
		return writeResults(cmd, out.Results)
	}),
}

var validationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a validation with its assignment, report, results and trust score",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		view, err := svc.GetValidationStatus(ctx, id)
		if err != nil {
			logging.Error(ctx, "get validation status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get validation status")
		}

		out := cmd.OutOrStdout()
		req := view.Request
		lines := []string{
			fmt.Sprintf("ID: %s", req.ID),
			fmt.Sprintf("Product: %s (%s)", dashIfEmpty(req.ProductName), req.ProductID),
			fmt.Sprintf("Brand: %s", dashIfEmpty(req.BrandName)),
			fmt.Sprintf("Status: %s", req.Status),
			fmt.Sprintf("Priority: %s", req.Priority),
			fmt.Sprintf("DataPoints: %s", dashIfEmpty(strings.Join(req.DataPoints, ","))),
		}
		if a := view.Assignment; a != nil {
			lines = append(lines, fmt.Sprintf("Assignment: %s lab=%s status=%s price=%.2f days=%d", a.ID, a.LabID, a.Status, a.Price, a.EstimatedDays))
		} else {
			lines = append(lines, "Assignment: none")
		}
		if r := view.Report; r != nil {
			lines = append(lines, fmt.Sprintf("Report: %s issued=%s expires=%s", r.ReportNumber, r.IssuedAt, r.ExpiresAt))
		}
		if view.TrustScore != nil {
			lines = append(lines, fmt.Sprintf("TrustScore: %.1f", *view.TrustScore))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return errs.Wrap(err, "write status output")
			}
		}
		return writeResults(cmd, view.Results)
	}),
}

var validationTrustScoreCmd = &cobra.Command{
	Use:   "trust-score",
	Short: "Calculate the trust score of a validation (--save appends it to the history)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		save, _ := cmd.Flags().GetBool("save")

		if save {
			rec, err := svc.RecalculateTrustScore(ctx, id)
			if err != nil {
				logging.Error(ctx, "recalculate trust score failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "recalculate trust score")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "trust_score=%.1f recorded as #%d for product %s\n", rec.Score, rec.ID, rec.ProductID); err != nil {
				return errs.Wrap(err, "write trust-score output")
			}
			return nil
		}

		score, err := svc.CalculateTrustScore(ctx, id)
		if err != nil {
			logging.Error(ctx, "calculate trust score failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "calculate trust score")
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"trust_score=%.1f validation=%.1f lab=%.1f accreditations=%.1f\n",
			score.Score,
			score.ValidationScore,
			score.LabScore,
			score.AccreditationScore,
		); err != nil {
			return errs.Wrap(err, "write trust-score output")
		}
		return nil
	}),
}

var validationVerifyReportCmd = &cobra.Command{
	Use:   "verify-report",
	Short: "Recompute and check the report integrity hash",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		out, err := svc.VerifyReport(ctx, id)
		if err != nil {
			logging.Error(ctx, "verify report failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "verify report")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"report %s: valid=%t expired=%t expires_at=%s\n",
			out.ReportNumber,
			out.Valid,
			out.Expired,
			out.ExpiresAt.Format(time.DateOnly),
		); err != nil {
			return errs.Wrap(err, "write verify output")
		}
		if !out.Valid {
			return errors.New("report hash does not match")
		}
		return nil
	}),
}

var validationHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the trust score history of a product, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		productID, _ := cmd.Flags().GetString("product")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := svc.TrustScoreHistory(ctx, productID, limit)
		if err != nil {
			logging.Error(ctx, "list trust score history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list trust score history")
		}
		if len(items) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no trust scores"); err != nil {
				return errs.Wrap(err, "write history output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\tvalidation_id\ttrust_score\tvalidation\tlab_quality\taccreditations\tcalculated_at"); err != nil {
			return errs.Wrap(err, "write history header")
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(
				w,
				"%d\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%s\n",
				item.ID,
				item.ValidationID,
				item.Score,
				item.Components.ValidationScore,
				item.Components.LabQuality,
				item.Components.Accreditations,
				item.CalculatedAt.Format(time.RFC3339),
			); err != nil {
				return errs.Wrap(err, "write history row")
			}
		}
		return w.Flush()
	}),
}

var validationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List validation requests, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawStatus, _ := cmd.Flags().GetString("status")
		productID, _ := cmd.Flags().GetString("product")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := ports.ValidationFilter{ProductID: productID, Limit: limit}
		if strings.TrimSpace(rawStatus) != "" {
			status, err := validation.ParseValidationStatus(rawStatus)
			if err != nil {
				return err
			}
			filter.Status = status
		}

		items, err := svc.ListValidations(ctx, filter)
		if err != nil {
			logging.Error(ctx, "list validations failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list validations")
		}
		if len(items) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no validations"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s [%s] product=%s priority=%s points=%d created=%s\n",
				item.ID,
				item.Status,
				item.ProductID,
				item.Priority,
				len(item.DataPoints),
				item.CreatedAt.Format(time.RFC3339),
			); err != nil {
				return errs.Wrap(err, "write list item")
			}
		}
		return nil
	}),
}

var validationExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire a validation, releasing any reserved laboratory capacity",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("validation")
		if err := svc.ExpireValidation(ctx, id); err != nil {
			logging.Error(ctx, "expire validation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "expire validation")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "expired validation: %s\n", id); err != nil {
			return errs.Wrap(err, "write expire output")
		}
		return nil
	}),
}

var validationSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run request, assignment and a synthetic report end to end",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		out, err := svc.Simulate(ctx, requestInputFromFlags(cmd))
		if err != nil {
			logging.Error(ctx, "simulate validation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "simulate validation")
		}

		if !out.Success {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "simulation incomplete: validation=%s reason=%s\n", out.ValidationID, out.Reason); err != nil {
				return errs.Wrap(err, "write simulate output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"simulation complete: validation=%s lab=%s report=%s status=%s trust_score=%.1f\n",
			out.ValidationID,
			out.LabAssigned,
			out.ReportNumber,
			out.Status,
			out.TrustScore,
		); err != nil {
			return errs.Wrap(err, "write simulate output")
		}
		return nil
	}),
}

func requestInputFromFlags(cmd *cobra.Command) labvalidation.CreateRequestInput {
	productID, _ := cmd.Flags().GetString("product")
	productName, _ := cmd.Flags().GetString("product-name")
	brandID, _ := cmd.Flags().GetString("brand")
	brandName, _ := cmd.Flags().GetString("brand-name")
	claims, _ := cmd.Flags().GetStringArray("claim")
	points, _ := cmd.Flags().GetStringSlice("data-point")
	priority, _ := cmd.Flags().GetString("priority")

	return labvalidation.CreateRequestInput{
		ProductID:   productID,
		ProductName: productName,
		BrandID:     brandID,
		BrandName:   brandName,
		Claims:      claims,
		DataPoints:  points,
		Priority:    priority,
	}
}

func uploadInputFromFlags(cmd *cobra.Command) (labvalidation.UploadReportInput, error) {
	id, _ := cmd.Flags().GetString("validation")
	labID, _ := cmd.Flags().GetString("lab")
	reportFile, _ := cmd.Flags().GetString("report-file")
	methodology, _ := cmd.Flags().GetString("methodology")
	observations, _ := cmd.Flags().GetString("observations")
	resultsFile, _ := cmd.Flags().GetString("results-file")
	rawResults, _ := cmd.Flags().GetStringArray("result")

	var results []validation.PointResult
	if strings.TrimSpace(resultsFile) != "" {
		loaded, err := seed.LoadResultsFile(resultsFile)
		if err != nil {
			return labvalidation.UploadReportInput{}, err
		}
		results = loaded
	}
	for _, raw := range rawResults {
		res, err := parseResultFlag(raw)
		if err != nil {
			return labvalidation.UploadReportInput{}, err
		}
		results = append(results, res)
	}

	return labvalidation.UploadReportInput{
		ValidationID: id,
		LabID:        labID,
		ReportFile:   reportFile,
		Methodology:  methodology,
		Observations: observations,
		Results:      results,
	}, nil
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("product", "", "Product id")
	cmd.Flags().String("product-name", "", "Product name")
	cmd.Flags().String("brand", "", "Brand id")
	cmd.Flags().String("brand-name", "", "Brand name")
	cmd.Flags().StringArray("claim", nil, "Label claim (repeatable)")
	cmd.Flags().StringSlice("data-point", nil, "Data point to verify (repeatable or comma separated)")
	cmd.Flags().String("priority", string(validation.PriorityNormal), "Priority (normal|urgent)")
	_ = cmd.MarkFlagRequired("product")
}

func addUploadFlags(cmd *cobra.Command) {
	cmd.Flags().String("lab", "", "Reporting laboratory id")
	cmd.Flags().String("report-file", "", "Reference to the signed report document")
	cmd.Flags().String("methodology", "", "Analytical methodology")
	cmd.Flags().String("observations", "", "Free-form observations")
	cmd.Flags().String("results-file", "", "YAML/JSON mapping of data point -> {declared, measured, unit, tolerance, remarks}")
	cmd.Flags().StringArray("result", nil, "Inline result name=declared,measured[,unit[,tolerance]] (repeatable)")
	_ = cmd.MarkFlagRequired("lab")
}

func addValidationFlag(cmd *cobra.Command) {
	cmd.Flags().String("validation", "", "Validation id")
	_ = cmd.MarkFlagRequired("validation")
}

func init() {
	rootCmd.AddCommand(validationCmd)
	validationCmd.AddCommand(
		validationRequestCmd,
		validationMarketplaceCmd,
		validationAssignCmd,
		validationUploadReportCmd,
		validationStatusCmd,
		validationTrustScoreCmd,
		validationVerifyReportCmd,
		validationHistoryCmd,
		validationListCmd,
		validationExpireCmd,
		validationSimulateCmd,
	)

	addRequestFlags(validationRequestCmd)
	addRequestFlags(validationSimulateCmd)

	for _, cmd := range []*cobra.Command{
		validationMarketplaceCmd,
		validationAssignCmd,
		validationUploadReportCmd,
		validationStatusCmd,
		validationTrustScoreCmd,
		validationVerifyReportCmd,
		validationExpireCmd,
	} {
		addValidationFlag(cmd)
	}

	validationAssignCmd.Flags().String("lab", "", "Laboratory id")
	validationAssignCmd.Flags().Float64("price", 0, "Agreed price (default: the lab's current quote)")
	validationAssignCmd.Flags().Int("days", 0, "Agreed turnaround in days (default: the lab's current quote)")
	_ = validationAssignCmd.MarkFlagRequired("lab")

	addUploadFlags(validationUploadReportCmd)

	validationTrustScoreCmd.Flags().Bool("save", false, "Append the calculated score to the product history")

	validationHistoryCmd.Flags().String("product", "", "Product id")
	validationHistoryCmd.Flags().Int("limit", 20, "Maximum entries (0 = all)")
	_ = validationHistoryCmd.MarkFlagRequired("product")

	validationListCmd.Flags().String("status", "", "Optional status filter")
	validationListCmd.Flags().String("product", "", "Optional product filter")
	validationListCmd.Flags().Int("limit", 50, "Maximum entries (0 = all)")
}

package notify

import (
	"context"
	"log/slog"
	"strings"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/ports"
)

// LogNotifier writes lifecycle events to the structured log only.
type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func (LogNotifier) LabAssigned(ctx context.Context, event ports.LabAssignedEvent) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"laboratory assigned",
		slog.String("validation_id", event.ValidationID),
		slog.String("lab_id", event.LabID),
		slog.String("product", event.ProductName),
		slog.String("data_points", strings.Join(event.DataPoints, ",")),
		slog.Float64("price", event.Price),
		slog.Int("estimated_days", event.EstimatedDays),
	)
	return nil
}

func (LogNotifier) ValidationConcluded(ctx context.Context, event ports.ValidationConcludedEvent) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"validation concluded",
		slog.String("validation_id", event.ValidationID),
		slog.String("lab_id", event.LabID),
		slog.String("overall_status", event.OverallStatus),
		slog.Float64("trust_score", event.TrustScore),
		slog.String("report_number", event.ReportNumber),
	)
	return nil
}

package ports

import (
	"context"
	"time"
)

// LabAssignedEvent tells a laboratory it has new work.
type LabAssignedEvent struct {
	ValidationID  string    `json:"validation_id"`
	LabID         string    `json:"lab_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	DataPoints    []string  `json:"data_points"`
	Price         float64   `json:"price"`
	EstimatedDays int       `json:"estimated_days"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// ValidationConcludedEvent is published once a report has been processed.
type ValidationConcludedEvent struct {
	ValidationID  string    `json:"validation_id"`
	ProductID     string    `json:"product_id"`
	LabID         string    `json:"lab_id"`
	OverallStatus string    `json:"overall_status"`
	TrustScore    float64   `json:"trust_score"`
	ReportNumber  string    `json:"report_number"`
	ConcludedAt   time.Time `json:"concluded_at"`
}

// Notifier delivers lifecycle events. Delivery is best-effort and happens after commit.
type Notifier interface {
	LabAssigned(ctx context.Context, event LabAssignedEvent) error
	ValidationConcluded(ctx context.Context, event ValidationConcludedEvent) error
}

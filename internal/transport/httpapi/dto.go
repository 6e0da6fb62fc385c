package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"trustlab/internal/domain/validation"
	"trustlab/internal/usecase/labvalidation"
)

// flexString accepts a JSON string, number or null. Labs send declared and
// measured values either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type pointResultBody struct {
	Declared  flexString `json:"declared"`
	Measured  flexString `json:"measured"`
	Unit      flexString `json:"unit"`
	Tolerance flexString `json:"tolerance"`
	Remarks   flexString `json:"remarks"`
}

// orderedResults decodes the results object keeping the order of its keys.
type orderedResults []validation.PointResult

func (o *orderedResults) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("results must be an object keyed by data point")
	}

	out := make(orderedResults, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var body pointResultBody
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("results[%q]: %w", key, err)
		}
		out = append(out, validation.PointResult{
			DataPoint: key,
			Declared:  string(body.Declared),
			Measured:  string(body.Measured),
			Unit:      string(body.Unit),
			Tolerance: string(body.Tolerance),
			Remarks:   string(body.Remarks),
		})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

type createRequestBody struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	BrandID     string   `json:"brand_id"`
	BrandName   string   `json:"brand_name"`
	Claims      []string `json:"claims"`
	DataPoints  []string `json:"data_points"`
	Priority    string   `json:"priority"`
}

func (b createRequestBody) input() labvalidation.CreateRequestInput {
	return labvalidation.CreateRequestInput{
		ProductID:   b.ProductID,
		ProductName: b.ProductName,
		BrandID:     b.BrandID,
		BrandName:   b.BrandName,
		Claims:      b.Claims,
		DataPoints:  b.DataPoints,
		Priority:    b.Priority,
	}
}

type createRequestResponse struct {
	Success      bool                   `json:"success"`
	ValidationID string                 `json:"validation_id"`
	Status       string                 `json:"status"`
	LabOptions   []validation.LabOption `json:"lab_options"`
	NextSteps    string                 `json:"next_steps"`
}

type marketplaceResponse struct {
	ValidationID   string                 `json:"validation_id"`
	AvailableLabs  []validation.LabOption `json:"available_labs"`
	Recommendation *validation.LabOption  `json:"recommendation"`
}

type assignBody struct {
	ValidationID  string  `json:"validation_id"`
	LabID         string  `json:"lab_id"`
	Price         float64 `json:"price"`
	EstimatedDays int     `json:"estimated_days"`
}

type assignResponse struct {
	Success             bool      `json:"success"`
	AssignmentID        string    `json:"assignment_id"`
	LabID               string    `json:"lab_id"`
	Price               float64   `json:"price"`
	EstimatedDays       int       `json:"estimated_days"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

type uploadReportBody struct {
	LabID        string         `json:"lab_id"`
	ReportFile   string         `json:"report_file"`
	Methodology  string         `json:"methodology"`
	Observations string         `json:"observations"`
	Results      orderedResults `json:"results"`
}

type uploadReportResponse struct {
	Success       bool             `json:"success"`
	ReportID      string           `json:"report_id"`
	ReportNumber  string           `json:"report_number"`
	Hash          string           `json:"hash"`
	OverallStatus string           `json:"overall_status"`
	TrustScore    float64          `json:"trust_score"`
	IssuedAt      time.Time        `json:"issued_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	Results       []resultResponse `json:"results"`
}

type resultResponse struct {
	DataPoint     string `json:"data_point"`
	DeclaredValue string `json:"declared_value"`
	MeasuredValue string `json:"measured_value"`
	Unit          string `json:"unit"`
	Status        string `json:"status"`
	Tolerance     string `json:"tolerance"`
	Remarks       string `json:"remarks"`
}

func toResultResponses(in []validation.ValidationResult) []resultResponse {
	out := make([]resultResponse, 0, len(in))
	for _, r := range in {
		out = append(out, resultResponse{
			DataPoint:     r.DataPoint,
			DeclaredValue: r.DeclaredValue,
			MeasuredValue: r.MeasuredValue,
			Unit:          r.Unit,
			Status:        string(r.Status),
			Tolerance:     r.Tolerance,
			Remarks:       r.Remarks,
		})
	}
	return out
}

type validationResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	BrandName   string    `json:"brand_name"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Claims      []string  `json:"claims"`
	DataPoints  []string  `json:"data_points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toValidationResponse(req validation.ValidationRequest) validationResponse {
	return validationResponse{
		ID:          req.ID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		BrandName:   req.BrandName,
		Status:      string(req.Status),
		Priority:    string(req.Priority),
		Claims:      nonNil(req.Claims),
		DataPoints:  nonNil(req.DataPoints),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

type assignmentResponse struct {
	ID            string     `json:"id"`
	LabID         string     `json:"lab_id"`
	Status        string     `json:"status"`
	Price         float64    `json:"price"`
	EstimatedDays int        `json:"estimated_days"`
	AssignedAt    time.Time  `json:"assigned_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

type reportSummaryResponse struct {
	ReportNumber string `json:"report_number"`
	LabID        string `json:"lab_id"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
	Hash         string `json:"hash"`
}

type statusResponse struct {
	Validation validationResponse     `json:"validation"`
	Assignment *assignmentResponse    `json:"assignment"`
	Report     *reportSummaryResponse `json:"report"`
	Results    []resultResponse       `json:"results"`
	TrustScore *float64               `json:"trust_score"`
}

func toStatusResponse(view labvalidation.ValidationStatusView) statusResponse {
	out := statusResponse{
		Validation: toValidationResponse(view.Request),
		Results:    toResultResponses(view.Results),
		TrustScore: view.TrustScore,
	}
	if a := view.Assignment; a != nil {
		out.Assignment = &assignmentResponse{
			ID:            a.ID,
			LabID:         a.LabID,
			Status:        string(a.Status),
			Price:         a.Price,
			EstimatedDays: a.EstimatedDays,
			AssignedAt:    a.AssignedAt,
			CompletedAt:   a.CompletedAt,
		}
	}
	if r := view.Report; r != nil {
		out.Report = &reportSummaryResponse{
			ReportNumber: r.ReportNumber,
			LabID:        r.LabID,
			IssuedAt:     r.IssuedAt,
			ExpiresAt:    r.ExpiresAt,
			Hash:         r.Hash,
		}
	}
	return out
}

type verifyResponse struct {
	ValidationID string    `json:"validation_id"`
	ReportNumber string    `json:"report_number"`
	Hash         string    `json:"hash"`
	Valid        bool      `json:"valid"`
	Expired      bool      `json:"expired"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type trustScoreResponse struct {
	ID           uint64                     `json:"id"`
	ProductID    string                     `json:"product_id"`
	ValidationID string                     `json:"validation_id"`
	TrustScore   float64                    `json:"trust_score"`
	Components   validation.ScoreComponents `json:"components"`
	CalculatedAt time.Time                  `json:"calculated_at"`
}

func toTrustScoreResponse(rec validation.TrustScoreRecord) trustScoreResponse {
	return trustScoreResponse{
		ID:           rec.ID,
		ProductID:    rec.ProductID,
		ValidationID: rec.ValidationID,
		TrustScore:   rec.Score,
		Components:   rec.Components,
		CalculatedAt: rec.CalculatedAt,
	}
}

type trustScoreHistoryResponse struct {
	ProductID string               `json:"product_id"`
	History   []trustScoreResponse `json:"history"`
}

type labResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Rating         float64  `json:"rating"`
	Accreditations []string `json:"accreditations"`
	Specialties    []string `json:"specialties"`
	Capacity       int      `json:"capacity"`
	CurrentLoad    int      `json:"current_load"`
	Status         string   `json:"status"`
	Utilization    float64  `json:"utilization"`
}

type labsResponse struct {
	Laboratories []labResponse `json:"laboratories"`
}

func toLabResponse(lab validation.Laboratory) labResponse {
	return labResponse{
		ID:             lab.ID,
		Name:           lab.Name,
		Rating:         lab.Rating,
		Accreditations: nonNil(lab.Accreditations),
		Specialties:    nonNil(lab.Specialties),
		Capacity:       lab.Capacity,
		CurrentLoad:    lab.CurrentLoad,
		Status:         string(lab.Status),
		Utilization:    lab.Utilization(),
	}
}

type labStatusBody struct {
	Status string `json:"status"`
}

type validationsResponse struct {
	Validations []validationResponse `json:"validations"`
}

type simulateResponse struct {
	Success            bool    `json:"success"`
	SimulationComplete bool    `json:"simulation_complete"`
	ValidationID       string  `json:"validation_id"`
	LabAssigned        string  `json:"lab_assigned,omitempty"`
	ReportNumber       string  `json:"report_number,omitempty"`
	TrustScore         float64 `json:"trust_score,omitempty"`
	Status             string  `json:"status"`
	Error              string  `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

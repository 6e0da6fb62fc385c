package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

const maxBodyBytes = 1 << 20

// Service is what the HTTP API needs from the lab validation service.
type Service interface {
	CreateValidationRequest(ctx context.Context, input labvalidation.CreateRequestInput) (labvalidation.CreateRequestResult, error)
	Marketplace(ctx context.Context, validationID string) (labvalidation.MarketplaceResult, error)
	ListValidations(ctx context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error)
	AssignLab(ctx context.Context, input labvalidation.AssignLabInput) (labvalidation.AssignLabResult, error)
	UploadReport(ctx context.Context, input labvalidation.UploadReportInput) (labvalidation.UploadReportResult, error)
	GetValidationStatus(ctx context.Context, validationID string) (labvalidation.ValidationStatusView, error)
	VerifyReport(ctx context.Context, validationID string) (labvalidation.ReportVerification, error)
	RecalculateTrustScore(ctx context.Context, validationID string) (validation.TrustScoreRecord, error)
	LatestTrustScore(ctx context.Context, productID string) (validation.TrustScoreRecord, error)
	TrustScoreHistory(ctx context.Context, productID string, limit int) ([]validation.TrustScoreRecord, error)
	ExpireValidation(ctx context.Context, validationID string) error
	ListLaboratories(ctx context.Context, filter ports.LabFilter) ([]validation.Laboratory, error)
	SetLabStatus(ctx context.Context, labID string, rawStatus string) error
	Simulate(ctx context.Context, input labvalidation.CreateRequestInput) (labvalidation.SimulationResult, error)
}

type handler struct {
	svc Service
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := h.svc.CreateValidationRequest(r.Context(), body.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRequestResponse{
		Success:      true,
		ValidationID: out.ValidationID,
		Status:       string(out.Status),
		LabOptions:   nonNilOptions(out.Options),
		NextSteps:    "Select a laboratory from the options provided",
	})
}

func (h *handler) marketplace(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Marketplace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketplaceResponse{
		ValidationID:   out.ValidationID,
		AvailableLabs:  nonNilOptions(out.Options),
		Recommendation: out.Recommendation,
	})
}

func (h *handler) listValidations(w http.ResponseWriter, r *http.Request) {
	filter := ports.ValidationFilter{
		ProductID: strings.TrimSpace(r.URL.Query().Get("product_id")),
		Limit:     queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := validation.ParseValidationStatus(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}

	items, err := h.svc.ListValidations(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := validationsResponse{Validations: make([]validationResponse, 0, len(items))}
	for _, item := range items {
		out.Validations = append(out.Validations, toValidationResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) assign(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := h.svc.AssignLab(r.Context(), labvalidation.AssignLabInput{
		ValidationID:  body.ValidationID,
		LabID:         body.LabID,
		Price:         body.Price,
		EstimatedDays: body.EstimatedDays,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignResponse{
		Success:             true,
		AssignmentID:        out.AssignmentID,
		LabID:               out.LabID,
		Price:               out.Price,
		EstimatedDays:       out.EstimatedDays,
		EstimatedCompletion: out.EstimatedCompletion,
	})
}

func (h *handler) uploadReport(w http.ResponseWriter, r *http.Request) {
	var body uploadReportBody
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := h.svc.UploadReport(r.Context(), labvalidation.UploadReportInput{
		ValidationID: chi.URLParam(r, "id"),
		LabID:        body.LabID,
		ReportFile:   body.ReportFile,
		Methodology:  body.Methodology,
		Observations: body.Observations,
		Results:      body.Results,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadReportResponse{
		Success:       true,
		ReportID:      out.ReportID,
		ReportNumber:  out.ReportNumber,
		Hash:          out.Hash,
		OverallStatus: string(out.OverallStatus),
		TrustScore:    out.TrustScore,
		IssuedAt:      out.IssuedAt,
		ExpiresAt:     out.ExpiresAt,
		Results:       toResultResponses(out.Results),
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetValidationStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(view))
}

func (h *handler) verifyReport(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.VerifyReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		ValidationID: out.ValidationID,
		ReportNumber: out.ReportNumber,
		Hash:         out.Hash,
		Valid:        out.Valid,
		Expired:      out.Expired,
		IssuedAt:     out.IssuedAt,
		ExpiresAt:    out.ExpiresAt,
	})
}

func (h *handler) recalculateTrustScore(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecalculateTrustScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrustScoreResponse(rec))
}

func (h *handler) expire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.ExpireValidation(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"validation_id": id, "status": string(validation.StatusExpired)})
}

func (h *handler) latestTrustScore(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.LatestTrustScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrustScoreResponse(rec))
}

func (h *handler) trustScoreHistory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	items, err := h.svc.TrustScoreHistory(r.Context(), productID, queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := trustScoreHistoryResponse{ProductID: productID, History: make([]trustScoreResponse, 0, len(items))}
	for _, item := range items {
		out.History = append(out.History, toTrustScoreResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listLabs(w http.ResponseWriter, r *http.Request) {
	filter := ports.LabFilter{Specialty: strings.TrimSpace(r.URL.Query().Get("specialty"))}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := validation.ParseLabStatus(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}

	labs, err := h.svc.ListLaboratories(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := labsResponse{Laboratories: make([]labResponse, 0, len(labs))}
	for _, lab := range labs {
		out.Laboratories = append(out.Laboratories, toLabResponse(lab))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) setLabStatus(w http.ResponseWriter, r *http.Request) {
	var body labStatusBody
	if !decodeBody(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.SetLabStatus(r.Context(), id, body.Status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": strings.ToLower(strings.TrimSpace(body.Status))})
}

func (h *handler) simulate(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := h.svc.Simulate(r.Context(), body.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, simulateResponse{
		Success:            out.Success,
		SimulationComplete: out.Success,
		ValidationID:       out.ValidationID,
		LabAssigned:        out.LabAssigned,
		ReportNumber:       out.ReportNumber,
		TrustScore:         out.TrustScore,
		Status:             string(out.Status),
		Error:              out.Reason,
	})
}

func nonNilOptions(in []validation.LabOption) []validation.LabOption {
	if in == nil {
		return []validation.LabOption{}
	}
	return in
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

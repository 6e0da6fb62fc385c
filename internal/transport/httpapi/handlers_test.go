package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

type stubService struct {
	createInput labvalidation.CreateRequestInput
	assignInput labvalidation.AssignLabInput
	uploadInput labvalidation.UploadReportInput
	labStatus   string
	listFilter  ports.ValidationFilter
	historyArgs string

	options []validation.LabOption
	err     error
}

func (s *stubService) CreateValidationRequest(_ context.Context, input labvalidation.CreateRequestInput) (labvalidation.CreateRequestResult, error) {
	s.createInput = input
	if s.err != nil {
		return labvalidation.CreateRequestResult{}, s.err
	}
	return labvalidation.CreateRequestResult{ValidationID: "v-1", Status: validation.StatusPending, Options: s.options}, nil
}

func (s *stubService) Marketplace(_ context.Context, id string) (labvalidation.MarketplaceResult, error) {
	if s.err != nil {
		return labvalidation.MarketplaceResult{}, s.err
	}
	out := labvalidation.MarketplaceResult{ValidationID: id, Options: s.options}
	if len(s.options) > 0 {
		out.Recommendation = &s.options[0]
	}
	return out, nil
}

func (s *stubService) ListValidations(_ context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error) {
	s.listFilter = filter
	return []validation.ValidationRequest{{ID: "v-1", Status: validation.StatusPending}}, s.err
}

func (s *stubService) AssignLab(_ context.Context, input labvalidation.AssignLabInput) (labvalidation.AssignLabResult, error) {
	s.assignInput = input
	if s.err != nil {
		return labvalidation.AssignLabResult{}, s.err
	}
	return labvalidation.AssignLabResult{AssignmentID: "a-1", LabID: input.LabID, Price: input.Price, EstimatedDays: input.EstimatedDays}, nil
}

func (s *stubService) UploadReport(_ context.Context, input labvalidation.UploadReportInput) (labvalidation.UploadReportResult, error) {
	s.uploadInput = input
	if s.err != nil {
		return labvalidation.UploadReportResult{}, s.err
	}
	return labvalidation.UploadReportResult{
		ReportID:      "r-1",
		ReportNumber:  "LAB-2025-1001",
		OverallStatus: validation.StatusValidated,
		TrustScore:    95.2,
	}, nil
}

func (s *stubService) GetValidationStatus(_ context.Context, id string) (labvalidation.ValidationStatusView, error) {
	if s.err != nil {
		return labvalidation.ValidationStatusView{}, s.err
	}
	score := 95.2
	return labvalidation.ValidationStatusView{
		Request:    validation.ValidationRequest{ID: id, Status: validation.StatusValidated},
		Report:     &labvalidation.ReportSummary{ReportNumber: "LAB-2025-1001"},
		TrustScore: &score,
	}, nil
}

func (s *stubService) VerifyReport(_ context.Context, id string) (labvalidation.ReportVerification, error) {
	return labvalidation.ReportVerification{ValidationID: id, Valid: true}, s.err
}

func (s *stubService) RecalculateTrustScore(_ context.Context, id string) (validation.TrustScoreRecord, error) {
	return validation.TrustScoreRecord{ID: 2, ValidationID: id, Score: 80}, s.err
}

func (s *stubService) LatestTrustScore(_ context.Context, productID string) (validation.TrustScoreRecord, error) {
	return validation.TrustScoreRecord{ID: 2, ProductID: productID, Score: 80}, s.err
}

func (s *stubService) TrustScoreHistory(_ context.Context, productID string, limit int) ([]validation.TrustScoreRecord, error) {
	s.historyArgs = fmt.Sprintf("%s/%d", productID, limit)
	return []validation.TrustScoreRecord{{ID: 2, Score: 80}, {ID: 1, Score: 70}}, s.err
}

func (s *stubService) ExpireValidation(context.Context, string) error { return s.err }

func (s *stubService) ListLaboratories(context.Context, ports.LabFilter) ([]validation.Laboratory, error) {
	return []validation.Laboratory{{ID: "lab-1", Capacity: 3, CurrentLoad: 1, Status: validation.LabAvailable}}, s.err
}

func (s *stubService) SetLabStatus(_ context.Context, _ string, raw string) error {
	s.labStatus = raw
	return s.err
}

func (s *stubService) Simulate(context.Context, labvalidation.CreateRequestInput) (labvalidation.SimulationResult, error) {
	return labvalidation.SimulationResult{ValidationID: "v-9", Status: validation.StatusPending, Reason: "no laboratories available"}, s.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestCreateRequestReturnsOptions(t *testing.T) {
	svc := &stubService{options: []validation.LabOption{{LabID: "lab-1", MatchScore: 10, Price: 1890, EstimatedDays: 12, CurrentLoad: "5/10"}}}
	h := NewRouter(svc)

	resp := do(t, h, http.MethodPost, "/api/v1/validation/request",
		`{"product_id":"p-1","product_name":"Whey","data_points":["proteínas","vitamina_c"],"priority":"urgent"}`)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "p-1", svc.createInput.ProductID)
	assert.Equal(t, []string{"proteínas", "vitamina_c"}, svc.createInput.DataPoints)
	assert.Equal(t, "urgent", svc.createInput.Priority)

	body := decode(t, resp)
	assert.Equal(t, "v-1", body["validation_id"])
	assert.Equal(t, "pending", body["status"])
	options := body["lab_options"].([]any)
	require.Len(t, options, 1)
	first := options[0].(map[string]any)
	assert.EqualValues(t, 10, first["match_score"])
	assert.EqualValues(t, 1890, first["price"])
	assert.EqualValues(t, 12, first["estimated_days"])
	assert.Equal(t, "5/10", first["current_load"])
}

func TestMarketplaceRecommendation(t *testing.T) {
	h := NewRouter(&stubService{})
	resp := do(t, h, http.MethodGet, "/api/v1/validation/marketplace/v-1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Nil(t, body["recommendation"])
	assert.Equal(t, []any{}, body["available_labs"])
}

func TestUploadReportKeepsResultOrderAndAcceptsNumbers(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)

	payload := `{
		"lab_id": "lab-1",
		"methodology": "AOAC",
		"results": {
			"sodio": {"declared": 200, "measured": "201.5", "unit": "mg"},
			"proteínas": {"declared": "30", "measured": 31, "tolerance": 5},
			"gorduras": {"declared": "10", "measured": null}
		}
	}`
	resp := do(t, h, http.MethodPost, "/api/v1/validation/v-1/upload-report", payload)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, "v-1", svc.uploadInput.ValidationID)
	assert.Equal(t, "lab-1", svc.uploadInput.LabID)
	require.Len(t, svc.uploadInput.Results, 3)
	assert.Equal(t, validation.PointResult{DataPoint: "sodio", Declared: "200", Measured: "201.5", Unit: "mg"}, svc.uploadInput.Results[0])
	assert.Equal(t, validation.PointResult{DataPoint: "proteínas", Declared: "30", Measured: "31", Tolerance: "5"}, svc.uploadInput.Results[1])
	assert.Equal(t, validation.PointResult{DataPoint: "gorduras", Declared: "10"}, svc.uploadInput.Results[2])

	body := decode(t, resp)
	assert.Equal(t, "validated", body["overall_status"])
	assert.EqualValues(t, 95.2, body["trust_score"])
	assert.Equal(t, "LAB-2025-1001", body["report_number"])
}

func TestUploadReportRejectsMalformedResults(t *testing.T) {
	h := NewRouter(&stubService{})

	resp := do(t, h, http.MethodPost, "/api/v1/validation/v-1/upload-report", `{"lab_id":"lab-1","results":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodPost, "/api/v1/validation/v-1/upload-report", `{"lab_id":"lab-1","results":{"x":{"declared":true}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAssignPassesQuote(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)
	resp := do(t, h, http.MethodPost, "/api/v1/validation/assign", `{"validation_id":"v-1","lab_id":"lab-1","price":1890,"estimated_days":12}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, labvalidation.AssignLabInput{ValidationID: "v-1", LabID: "lab-1", Price: 1890, EstimatedDays: 12}, svc.assignInput)
	assert.Equal(t, "a-1", decode(t, resp)["assignment_id"])
}

func TestErrorStatusMapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: errs.Wrap(ports.ErrValidationNotFound, "assign laboratory"), want: http.StatusNotFound},
		{name: "lab not found", err: ports.ErrLabNotFound, want: http.StatusNotFound},
		{name: "capacity", err: errs.Wrap(validation.ErrCapacityExceeded, "assign laboratory"), want: http.StatusConflict},
		{name: "transition", err: validation.ErrInvalidTransition, want: http.StatusConflict},
		{name: "mismatch", err: validation.ErrLabMismatch, want: http.StatusConflict},
		{name: "unavailable", err: validation.ErrLabUnavailable, want: http.StatusConflict},
		{name: "tax id taken", err: errs.Wrapf(ports.ErrTaxIDTaken, "upsert laboratory %q", "lab-4"), want: http.StatusConflict},
		{name: "priority", err: validation.ErrInvalidPriority, want: http.StatusBadRequest},
		{name: "input", err: labvalidation.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "unknown", err: fmt.Errorf("disk full"), want: http.StatusInternalServerError},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := NewRouter(&stubService{err: testCase.err})
			resp := do(t, h, http.MethodPost, "/api/v1/validation/assign", `{"validation_id":"v-1","lab_id":"lab-1"}`)
			assert.Equal(t, testCase.want, resp.Code)
			body := decode(t, resp)
			if testCase.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestStatusView(t *testing.T) {
	h := NewRouter(&stubService{})
	resp := do(t, h, http.MethodGet, "/api/v1/validation/v-1/status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.EqualValues(t, 95.2, body["trust_score"])
	assert.Nil(t, body["assignment"])
	assert.Equal(t, "LAB-2025-1001", body["report"].(map[string]any)["report_number"])
	assert.Equal(t, "v-1", body["validation"].(map[string]any)["id"])
}

func TestTrustScoreRoutes(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)

	resp := do(t, h, http.MethodGet, "/api/v1/products/p-1/trust-scores?limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "p-1/5", svc.historyArgs)
	assert.Len(t, decode(t, resp)["history"], 2)

	resp = do(t, h, http.MethodPost, "/api/v1/validation/v-1/trust-score", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 80, decode(t, resp)["trust_score"])

	resp = do(t, h, http.MethodGet, "/api/v1/products/p-1/trust-score", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "p-1", decode(t, resp)["product_id"])
}

func TestLabsRoutes(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)

	resp := do(t, h, http.MethodGet, "/api/v1/labs", "")
	require.Equal(t, http.StatusOK, resp.Code)
	labs := decode(t, resp)["laboratories"].([]any)
	require.Len(t, labs, 1)
	assert.EqualValues(t, 33.3, labs[0].(map[string]any)["utilization"])

	resp = do(t, h, http.MethodGet, "/api/v1/labs?status=closed", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodPatch, "/api/v1/labs/lab-1/status", `{"status":"offline"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "offline", svc.labStatus)
}

func TestListValidationsFilter(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)

	resp := do(t, h, http.MethodGet, "/api/v1/validations?status=pending&limit=10&product_id=p-1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, ports.ValidationFilter{Status: validation.StatusPending, ProductID: "p-1", Limit: 10}, svc.listFilter)

	resp = do(t, h, http.MethodGet, "/api/v1/validations?status=done", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSimulateWithoutLabs(t *testing.T) {
	h := NewRouter(&stubService{})
	resp := do(t, h, http.MethodPost, "/api/v1/validation/simulate", `{"product_id":"p-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "no laboratories available", body["error"])
}

func TestHealthzAndRequestID(t *testing.T) {
	h := NewRouter(&stubService{})
	resp := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestServerShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer("127.0.0.1:0", NewRouter(&stubService{}))

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

package labvalidation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"trustlab/internal/bootstrap/database"
	"trustlab/internal/domain/validation"
	"trustlab/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "trustlab/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "trustlab/internal/infrastructure/persistence/sqlite/uow"
	"trustlab/internal/ports"
)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testNotifier struct {
	mu        sync.Mutex
	assigned  []ports.LabAssignedEvent
	concluded []ports.ValidationConcludedEvent
	err       error
}

func (n *testNotifier) LabAssigned(_ context.Context, e ports.LabAssignedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, e)
	return n.err
}

func (n *testNotifier) ValidationConcluded(_ context.Context, e ports.ValidationConcludedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.concluded = append(n.concluded, e)
	return n.err
}

type fixture struct {
	svc      *Service
	labs     *sqliterepo.LabRepository
	repo     *sqliterepo.ValidationRepository
	uow      ports.UnitOfWork
	cache    *testCache
	notifier *testNotifier
	now      time.Time
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "lab_validation.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	f := &fixture{
		labs:     sqliterepo.NewLabRepository(db),
		repo:     sqliterepo.NewValidationRepository(db),
		uow:      sqliteuow.NewUnitOfWork(db),
		cache:    newTestCache(),
		notifier: &testNotifier{},
		now:      time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
	}

	var seq int
	var seqMu sync.Mutex
	f.svc = NewService(
		f.labs,
		f.repo,
		f.uow,
		f.cache,
		f.notifier,
		ports.StaticCatalog(validation.DefaultCatalog()),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	return f
}

func (f *fixture) addLab(t *testing.T, lab validation.Laboratory) {
	t.Helper()
	if _, err := f.svc.RegisterLab(context.Background(), lab); err != nil {
		t.Fatalf("RegisterLab(%s) error = %v", lab.ID, err)
	}
}

func (f *fixture) request(t *testing.T, points ...string) CreateRequestResult {
	t.Helper()
	res, err := f.svc.CreateValidationRequest(context.Background(), CreateRequestInput{
		ProductID:   "prod-1",
		ProductName: "Whey Isolado",
		BrandID:     "brand-1",
		BrandName:   "Marca",
		Claims:      []string{"30g proteína"},
		DataPoints:  points,
	})
	if err != nil {
		t.Fatalf("CreateValidationRequest() error = %v", err)
	}
	return res
}

func nutriLab(id string, capacity int) validation.Laboratory {
	return validation.Laboratory{
		ID:             id,
		Name:           "Lab " + id,
		Accreditations: []string{"ISO 17025", "ANVISA", "MAPA"},
		Specialties:    []string{"nutricional"},
		Capacity:       capacity,
		Rating:         4.8,
	}
}

func TestCreateValidationRequestReturnsRankedOptions(t *testing.T) {
	f := setupService(t)
	f.addLab(t, nutriLab("lab-nutri", 10))
	f.addLab(t, validation.Laboratory{ID: "lab-micro", Specialties: []string{"microbiologia"}, Capacity: 10, Rating: 5})
	f.addLab(t, validation.Laboratory{ID: "lab-off", Specialties: []string{"nutricional"}, Capacity: 10, Rating: 5, Status: validation.LabOffline})

	res := f.request(t, "proteínas", "vitamina_c")
	if res.Status != validation.StatusPending {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Options) != 2 {
		t.Fatalf("options = %+v", res.Options)
	}
	if res.Options[0].LabID != "lab-nutri" || res.Options[0].MatchScore != 10 {
		t.Fatalf("best option = %+v", res.Options[0])
	}

	market, err := f.svc.Marketplace(context.Background(), res.ValidationID)
	if err != nil {
		t.Fatalf("Marketplace() error = %v", err)
	}
	if market.Recommendation == nil || market.Recommendation.LabID != "lab-nutri" {
		t.Fatalf("Marketplace() recommendation = %+v", market.Recommendation)
	}

	if _, err := f.svc.Marketplace(context.Background(), "missing"); !errors.Is(err, ports.ErrValidationNotFound) {
		t.Fatalf("Marketplace(missing) error = %v", err)
	}
}

func TestCreateValidationRequestRejectsBadInput(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	if _, err := f.svc.CreateValidationRequest(ctx, CreateRequestInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing product error = %v", err)
	}
	if _, err := f.svc.CreateValidationRequest(ctx, CreateRequestInput{ProductID: "p", Priority: "asap"}); !errors.Is(err, validation.ErrInvalidPriority) {
		t.Fatalf("bad priority error = %v", err)
	}
}

func TestAssignLabReservesCapacityAndNotifies(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, nutriLab("lab-1", 2))
	req := f.request(t, "proteínas", "gorduras", "sodio")

	out, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: req.ValidationID, LabID: "lab-1"})
	if err != nil {
		t.Fatalf("AssignLab() error = %v", err)
	}
	if out.Price != 2100 || out.EstimatedDays != 10 {
		t.Fatalf("AssignLab() quote price=%v days=%d", out.Price, out.EstimatedDays)
	}
	if !out.EstimatedCompletion.Equal(f.now.AddDate(0, 0, 10)) {
		t.Fatalf("estimated completion = %v", out.EstimatedCompletion)
	}

	lab, _ := f.labs.GetLab(ctx, "lab-1")
	if lab.CurrentLoad != 1 {
		t.Fatalf("current_load = %d", lab.CurrentLoad)
	}
	stored, _ := f.repo.GetValidationRequest(ctx, req.ValidationID)
	if stored.Status != validation.StatusInAnalysis {
		t.Fatalf("status = %q", stored.Status)
	}
	if len(f.notifier.assigned) != 1 || f.notifier.assigned[0].LabID != "lab-1" {
		t.Fatalf("notifications = %+v", f.notifier.assigned)
	}

	if _, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: req.ValidationID, LabID: "lab-1"}); !errors.Is(err, validation.ErrInvalidTransition) {
		t.Fatalf("AssignLab(second) error = %v", err)
	}
}

func TestAssignLabRollsBackWhenFull(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, nutriLab("lab-1", 1))

	first := f.request(t, "proteínas")
	second := f.request(t, "proteínas")

	if _, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: first.ValidationID, LabID: "lab-1", Price: 100, EstimatedDays: 3}); err != nil {
		t.Fatalf("AssignLab(first) error = %v", err)
	}
	_, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: second.ValidationID, LabID: "lab-1", Price: 100, EstimatedDays: 3})
	if !errors.Is(err, validation.ErrCapacityExceeded) {
		t.Fatalf("AssignLab(full) error = %v", err)
	}

	stored, _ := f.repo.GetValidationRequest(ctx, second.ValidationID)
	if stored.Status != validation.StatusPending {
		t.Fatalf("status after failed assign = %q", stored.Status)
	}
	if _, err := f.repo.GetAssignment(ctx, second.ValidationID); !errors.Is(err, ports.ErrAssignmentNotFound) {
		t.Fatalf("assignment after failed assign error = %v", err)
	}
}

func TestAssignLabRejectsUnavailableAndMissingLabs(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, validation.Laboratory{ID: "lab-busy", Capacity: 3, Status: validation.LabBusy})
	req := f.request(t, "proteínas")

	if _, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: req.ValidationID, LabID: "lab-busy"}); !errors.Is(err, validation.ErrLabUnavailable) {
		t.Fatalf("AssignLab(busy) error = %v", err)
	}
	if _, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: req.ValidationID, LabID: "nope"}); !errors.Is(err, ports.ErrLabNotFound) {
		t.Fatalf("AssignLab(missing lab) error = %v", err)
	}
	if _, err := f.svc.AssignLab(ctx, AssignLabInput{ValidationID: "nope", LabID: "lab-busy"}); !errors.Is(err, ports.ErrValidationNotFound) {
		t.Fatalf("AssignLab(missing request) error = %v", err)
	}
}

func TestConcurrentAssignmentsNeverExceedCapacity(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	const capacity = 2
	f.addLab(t, nutriLab("lab-1", capacity))

	ids := make([]string, 6)
	for i := range ids {
		ids[i] = f.request(t, "proteínas").ValidationID
	}

	var mu sync.Mutex
	ok, full := 0, 0
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			_, err := f.svc.AssignLab(gctx, AssignLabInput{ValidationID: id, LabID: "lab-1", Price: 1, EstimatedDays: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, validation.ErrCapacityExceeded):
				full++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("AssignLab() unexpected error = %v", err)
	}
	if ok != capacity || full != len(ids)-capacity {
		t.Fatalf("assignments ok=%d full=%d", ok, full)
	}
	lab, _ := f.labs.GetLab(ctx, "lab-1")
	if lab.CurrentLoad != capacity {
		t.Fatalf("current_load = %d", lab.CurrentLoad)
	}
}

func assigned(t *testing.T, f *fixture, points ...string) string {
	t.Helper()
	f.addLab(t, nutriLab("lab-1", 5))
	req := f.request(t, points...)
	if _, err := f.svc.AssignLab(context.Background(), AssignLabInput{ValidationID: req.ValidationID, LabID: "lab-1"}); err != nil {
		t.Fatalf("AssignLab() error = %v", err)
	}
	return req.ValidationID
}

func TestUploadReportConcludesAndScores(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := assigned(t, f, "proteínas", "gorduras", "carboidratos", "sodio")

	out, err := f.svc.UploadReport(ctx, UploadReportInput{
		ValidationID: id,
		LabID:        "lab-1",
		Methodology:  "AOAC",
		Results: []validation.PointResult{
			{DataPoint: "proteínas", Declared: "100", Measured: "104", Tolerance: "5"},
			{DataPoint: "gorduras", Declared: "10", Measured: "10.1"},
			{DataPoint: "carboidratos", Declared: "50", Measured: "49"},
			{DataPoint: "sodio", Declared: "200", Measured: "201"},
		},
	})
	if err != nil {
		t.Fatalf("UploadReport() error = %v", err)
	}
	if out.OverallStatus != validation.StatusValidated {
		t.Fatalf("overall status = %q", out.OverallStatus)
	}
	if out.TrustScore != 95.2 {
		t.Fatalf("trust score = %v, want 95.2", out.TrustScore)
	}
	if out.ReportNumber != "LAB-2025-1001" {
		t.Fatalf("report number = %q", out.ReportNumber)
	}
	if !out.ExpiresAt.Equal(f.now.Add(validation.ReportValidity)) {
		t.Fatalf("expires at = %v", out.ExpiresAt)
	}

	lab, _ := f.labs.GetLab(ctx, "lab-1")
	if lab.CurrentLoad != 0 {
		t.Fatalf("current_load after report = %d", lab.CurrentLoad)
	}
	assignment, _ := f.repo.GetAssignment(ctx, id)
	if assignment.Status != validation.AssignmentCompleted {
		t.Fatalf("assignment status = %q", assignment.Status)
	}
	if len(f.notifier.concluded) != 1 || f.notifier.concluded[0].TrustScore != 95.2 {
		t.Fatalf("concluded notifications = %+v", f.notifier.concluded)
	}

	verify, err := f.svc.VerifyReport(ctx, id)
	if err != nil {
		t.Fatalf("VerifyReport() error = %v", err)
	}
	if !verify.Valid || verify.Expired {
		t.Fatalf("VerifyReport() = %+v", verify)
	}

	again, err := f.svc.CalculateTrustScore(ctx, id)
	if err != nil {
		t.Fatalf("CalculateTrustScore() error = %v", err)
	}
	if again.Score != out.TrustScore {
		t.Fatalf("CalculateTrustScore() = %v, want %v", again.Score, out.TrustScore)
	}
}

func TestUploadReportStatusRules(t *testing.T) {
	cases := []struct {
		name    string
		results []validation.PointResult
		want    validation.ValidationStatus
	}{
		{
			name: "rejected",
			results: []validation.PointResult{
				{DataPoint: "proteínas", Declared: "100", Measured: "108"},
				{DataPoint: "gorduras", Declared: "100", Measured: "106"},
			},
			want: validation.StatusRejected,
		},
		{
			name: "remarks",
			results: []validation.PointResult{
				{DataPoint: "proteínas", Declared: "100", Measured: "100"},
				{DataPoint: "gorduras", Declared: "100", Measured: "106"},
			},
			want: validation.StatusValidatedWithRemarks,
		},
		{
			name: "untested falls back to validated",
			results: []validation.PointResult{
				{DataPoint: "proteínas", Declared: "100"},
			},
			want: validation.StatusValidated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupService(t)
			id := assigned(t, f, "proteínas", "gorduras")
			out, err := f.svc.UploadReport(context.Background(), UploadReportInput{ValidationID: id, LabID: "lab-1", Results: tc.results})
			if err != nil {
				t.Fatalf("UploadReport() error = %v", err)
			}
			if out.OverallStatus != tc.want {
				t.Fatalf("overall status = %q, want %q", out.OverallStatus, tc.want)
			}
		})
	}
}

func TestUploadReportGuards(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, nutriLab("lab-2", 5))
	id := assigned(t, f, "proteínas")
	pending := f.request(t, "proteínas")

	results := []validation.PointResult{{DataPoint: "proteínas", Declared: "1", Measured: "1"}}

	if _, err := f.svc.UploadReport(ctx, UploadReportInput{ValidationID: id, LabID: "lab-2", Results: results}); !errors.Is(err, validation.ErrLabMismatch) {
		t.Fatalf("UploadReport(wrong lab) error = %v", err)
	}
	if _, err := f.svc.UploadReport(ctx, UploadReportInput{ValidationID: pending.ValidationID, LabID: "lab-1", Results: results}); !errors.Is(err, validation.ErrInvalidTransition) {
		t.Fatalf("UploadReport(pending) error = %v", err)
	}
	dup := append(results, results[0])
	if _, err := f.svc.UploadReport(ctx, UploadReportInput{ValidationID: id, LabID: "lab-1", Results: dup}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("UploadReport(duplicate) error = %v", err)
	}

	if _, err := f.svc.UploadReport(ctx, UploadReportInput{ValidationID: id, LabID: "lab-1", Results: results}); err != nil {
		t.Fatalf("UploadReport() error = %v", err)
	}
	if _, err := f.svc.UploadReport(ctx, UploadReportInput{ValidationID: id, LabID: "lab-1", Results: results}); !errors.Is(err, validation.ErrInvalidTransition) {
		t.Fatalf("UploadReport(second) error = %v", err)
	}

	lab, _ := f.labs.GetLab(ctx, "lab-1")
	if lab.CurrentLoad != 0 {
		t.Fatalf("current_load = %d", lab.CurrentLoad)
	}
}

func TestTrustScoreHistoryAndCache(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := assigned(t, f, "proteínas")

	if _, err := f.svc.LatestTrustScore(ctx, "prod-1"); !errors.Is(err, ErrNoTrustScore) {
		t.Fatalf("LatestTrustScore(before) error = %v", err)
	}

	if _, err := f.svc.UploadReport(ctx, UploadReportInput{
		ValidationID: id,
		LabID:        "lab-1",
		Results:      []validation.PointResult{{DataPoint: "proteínas", Declared: "10", Measured: "10"}},
	}); err != nil {
		t.Fatalf("UploadReport() error = %v", err)
	}

	latest, err := f.svc.LatestTrustScore(ctx, "prod-1")
	if err != nil {
		t.Fatalf("LatestTrustScore() error = %v", err)
	}
	if _, found, _ := f.cache.Get(ctx, cacheLatestTrustScoreKey("prod-1")); !found {
		t.Fatalf("LatestTrustScore() did not populate cache")
	}

	f.now = f.now.Add(time.Hour)
	rec, err := f.svc.RecalculateTrustScore(ctx, id)
	if err != nil {
		t.Fatalf("RecalculateTrustScore() error = %v", err)
	}
	if rec.Score != latest.Score || rec.ID == latest.ID {
		t.Fatalf("RecalculateTrustScore() = %+v, previous %+v", rec, latest)
	}
	if _, found, _ := f.cache.Get(ctx, cacheLatestTrustScoreKey("prod-1")); found {
		t.Fatalf("RecalculateTrustScore() did not invalidate cache")
	}

	history, err := f.svc.TrustScoreHistory(ctx, "prod-1", 0)
	if err != nil {
		t.Fatalf("TrustScoreHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].ID != rec.ID {
		t.Fatalf("TrustScoreHistory() = %+v", history)
	}
	sum := history[0].Components.ValidationScore + history[0].Components.LabQuality + history[0].Components.Accreditations
	if diff := sum - history[0].Score; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("components sum = %v, score = %v", sum, history[0].Score)
	}

	status, err := f.svc.GetValidationStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetValidationStatus() error = %v", err)
	}
	if status.TrustScore == nil || *status.TrustScore != rec.Score || status.Report == nil || len(status.Results) != 1 {
		t.Fatalf("GetValidationStatus() = %+v", status)
	}
}

func TestCalculateTrustScoreWithoutResultsIsZero(t *testing.T) {
	f := setupService(t)
	req := f.request(t, "proteínas")

	score, err := f.svc.CalculateTrustScore(context.Background(), req.ValidationID)
	if err != nil {
		t.Fatalf("CalculateTrustScore() error = %v", err)
	}
	if score.Score != 0 {
		t.Fatalf("CalculateTrustScore() = %+v", score)
	}
}

func TestCalculateTrustScoreUnknownValidation(t *testing.T) {
	f := setupService(t)

	score, err := f.svc.CalculateTrustScore(context.Background(), "does-not-exist")
	if !errors.Is(err, ports.ErrValidationNotFound) {
		t.Fatalf("CalculateTrustScore(unknown) error = %v, want ErrValidationNotFound", err)
	}
	if score != (validation.TrustScore{}) {
		t.Fatalf("CalculateTrustScore(unknown) = %+v", score)
	}
}

func TestExpireValidationReleasesCapacity(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := assigned(t, f, "proteínas")

	if err := f.svc.ExpireValidation(ctx, id); err != nil {
		t.Fatalf("ExpireValidation() error = %v", err)
	}
	lab, _ := f.labs.GetLab(ctx, "lab-1")
	if lab.CurrentLoad != 0 {
		t.Fatalf("current_load = %d", lab.CurrentLoad)
	}
	if err := f.svc.ExpireValidation(ctx, id); !errors.Is(err, validation.ErrInvalidTransition) {
		t.Fatalf("ExpireValidation(again) error = %v", err)
	}
}

func TestSimulate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	empty, err := f.svc.Simulate(ctx, CreateRequestInput{ProductID: "prod-1", DataPoints: []string{"proteínas"}})
	if err != nil {
		t.Fatalf("Simulate(no labs) error = %v", err)
	}
	if empty.Success || empty.Reason == "" {
		t.Fatalf("Simulate(no labs) = %+v", empty)
	}

	f.addLab(t, nutriLab("lab-1", 5))
	out, err := f.svc.Simulate(ctx, CreateRequestInput{ProductID: "prod-1", DataPoints: []string{"proteínas", "gorduras"}})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if !out.Success || out.LabID != "lab-1" || out.ReportNumber == "" {
		t.Fatalf("Simulate() = %+v", out)
	}
	if out.Status != validation.StatusValidated && out.Status != validation.StatusValidatedWithRemarks {
		t.Fatalf("Simulate() status = %q", out.Status)
	}
	if out.TrustScore <= 0 || out.TrustScore > 100 {
		t.Fatalf("Simulate() trust score = %v", out.TrustScore)
	}

	status, err := f.svc.GetValidationStatus(ctx, out.ValidationID)
	if err != nil {
		t.Fatalf("GetValidationStatus() error = %v", err)
	}
	for _, r := range status.Results {
		if r.Unit != "mg/100g" || r.Tolerance != "5" {
			t.Fatalf("simulated result = %+v", r)
		}
	}
}

// fillingLabs occupies a lab's remaining capacity right before the service
// reserves it, as a competing assignment would.
type fillingLabs struct {
	*sqliterepo.LabRepository
}

func (r fillingLabs) UpdateLabLoad(ctx context.Context, labID string, delta int) (validation.Laboratory, error) {
	lab, err := r.LabRepository.GetLab(ctx, labID)
	if err != nil {
		return validation.Laboratory{}, err
	}
	if free := lab.Capacity - lab.CurrentLoad; delta > 0 && free > 0 {
		if _, err := r.LabRepository.UpdateLabLoad(ctx, labID, free); err != nil {
			return validation.Laboratory{}, err
		}
	}
	return r.LabRepository.UpdateLabLoad(ctx, labID, delta)
}

func TestSimulateWhenBestLabFillsUp(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, nutriLab("lab-1", 2))

	svc := NewService(
		fillingLabs{f.labs},
		f.repo,
		f.uow,
		f.cache,
		f.notifier,
		ports.StaticCatalog(validation.DefaultCatalog()),
		WithClock(func() time.Time { return f.now }),
	)

	out, err := svc.Simulate(ctx, CreateRequestInput{ProductID: "prod-1", DataPoints: []string{"proteínas"}})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if out.Success || out.LabID != "lab-1" || out.ReportNumber != "" {
		t.Fatalf("Simulate() = %+v", out)
	}
	if out.Reason != validation.ErrCapacityExceeded.Error() {
		t.Fatalf("Simulate() reason = %q", out.Reason)
	}

	// the failed reservation rolled back with the assignment
	lab, err := f.labs.GetLab(ctx, "lab-1")
	if err != nil {
		t.Fatalf("GetLab() error = %v", err)
	}
	if lab.CurrentLoad != 0 {
		t.Fatalf("current_load = %d, want 0", lab.CurrentLoad)
	}
	status, err := svc.GetValidationStatus(ctx, out.ValidationID)
	if err != nil {
		t.Fatalf("GetValidationStatus() error = %v", err)
	}
	if status.Request.Status != validation.StatusPending || status.Assignment != nil {
		t.Fatalf("validation after failed simulation = %+v", status)
	}
}

func TestSimulateWhenBestLabGoesOffline(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.addLab(t, nutriLab("lab-1", 2))

	offline := offliningLabs{LabRepository: f.labs}
	svc := NewService(offline, f.repo, f.uow, f.cache, f.notifier, ports.StaticCatalog(validation.DefaultCatalog()))

	out, err := svc.Simulate(ctx, CreateRequestInput{ProductID: "prod-1", DataPoints: []string{"proteínas"}})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if out.Success || out.Reason != validation.ErrLabUnavailable.Error() {
		t.Fatalf("Simulate() = %+v", out)
	}
}

// offliningLabs reports every lab offline on direct lookup while matching still sees it available.
type offliningLabs struct {
	*sqliterepo.LabRepository
}

func (r offliningLabs) GetLab(ctx context.Context, labID string) (validation.Laboratory, error) {
	lab, err := r.LabRepository.GetLab(ctx, labID)
	if err != nil {
		return validation.Laboratory{}, err
	}
	lab.Status = validation.LabOffline
	return lab, nil
}

func TestLabMaintenance(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	n, err := f.svc.SeedLabs(ctx, []validation.Laboratory{nutriLab("lab-a", 3), nutriLab("lab-b", 3)})
	if err != nil || n != 2 {
		t.Fatalf("SeedLabs() = %d, %v", n, err)
	}
	if _, err := f.svc.SeedLabs(ctx, []validation.Laboratory{{ID: "x", Rating: 9}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SeedLabs(bad) error = %v", err)
	}

	if err := f.svc.SetLabStatus(ctx, "lab-a", "offline"); err != nil {
		t.Fatalf("SetLabStatus() error = %v", err)
	}
	if err := f.svc.SetLabStatus(ctx, "lab-a", "closed"); !errors.Is(err, validation.ErrInvalidLabStatus) {
		t.Fatalf("SetLabStatus(bad) error = %v", err)
	}
	if err := f.svc.SetLabStatus(ctx, "nope", "busy"); !errors.Is(err, ports.ErrLabNotFound) {
		t.Fatalf("SetLabStatus(missing) error = %v", err)
	}

	offline, err := f.svc.ListLaboratories(ctx, ports.LabFilter{Status: validation.LabOffline})
	if err != nil || len(offline) != 1 || offline[0].ID != "lab-a" {
		t.Fatalf("ListLaboratories(offline) = %+v, %v", offline, err)
	}
}

package labconsole

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"trustlab/internal/domain/validation"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

type fakeBackend struct {
	labs        []validation.Laboratory
	validations []validation.ValidationRequest
	market      labvalidation.MarketplaceResult
	assigned    []labvalidation.AssignLabInput
	expired     []string
	lastFilter  ports.ValidationFilter
	listErr     error
}

func (f *fakeBackend) ListLaboratories(context.Context, ports.LabFilter) ([]validation.Laboratory, error) {
	return f.labs, nil
}

func (f *fakeBackend) ListValidations(_ context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error) {
	f.lastFilter = filter
	return f.validations, f.listErr
}

func (f *fakeBackend) GetValidationStatus(_ context.Context, id string) (labvalidation.ValidationStatusView, error) {
	for _, v := range f.validations {
		if v.ID == id {
			return labvalidation.ValidationStatusView{Request: v}, nil
		}
	}
	return labvalidation.ValidationStatusView{}, ports.ErrValidationNotFound
}

func (f *fakeBackend) Marketplace(context.Context, string) (labvalidation.MarketplaceResult, error) {
	return f.market, nil
}

func (f *fakeBackend) AssignLab(_ context.Context, input labvalidation.AssignLabInput) (labvalidation.AssignLabResult, error) {
	f.assigned = append(f.assigned, input)
	return labvalidation.AssignLabResult{LabID: input.LabID, Price: input.Price, EstimatedDays: input.EstimatedDays}, nil
}

func (f *fakeBackend) ExpireValidation(_ context.Context, id string) error {
	f.expired = append(f.expired, id)
	return nil
}

func runCmd(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected command")
	}
	next, _ := m.Update(cmd())
	return next
}

func TestConsoleLoadsAndSelects(t *testing.T) {
	backend := &fakeBackend{
		labs: []validation.Laboratory{{ID: "lab-1", Status: validation.LabAvailable, Capacity: 4, CurrentLoad: 1, Rating: 4.8}},
		validations: []validation.ValidationRequest{
			{ID: "v-1", ProductID: "p-1", Status: validation.StatusPending},
			{ID: "v-2", ProductID: "p-2", Status: validation.StatusInAnalysis},
		},
	}
	m := NewConsoleModel(context.Background(), backend, Options{StatusFilter: "Pending"}).(*consoleModel)

	next, cmd := m.Update(m.loadCmd()())
	m = next.(*consoleModel)
	if len(m.validations) != 2 || len(m.labs) != 1 {
		t.Fatalf("loaded validations=%d labs=%d", len(m.validations), len(m.labs))
	}
	if backend.lastFilter.Status != validation.StatusPending || backend.lastFilter.Limit != 50 {
		t.Fatalf("filter = %+v", backend.lastFilter)
	}
	m = runCmd(t, m, cmd).(*consoleModel)
	if !m.hasDetail || m.detail.Request.ID != "v-1" {
		t.Fatalf("detail = %+v", m.detail)
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(*consoleModel)
	m = runCmd(t, m, cmd).(*consoleModel)
	if m.selectedIndex != 1 || m.detail.Request.ID != "v-2" {
		t.Fatalf("selected=%d detail=%s", m.selectedIndex, m.detail.Request.ID)
	}

	view := m.View()
	if !strings.Contains(view, "lab-1 [available] load=1/4 (25%)") {
		t.Fatalf("View() missing lab line:\n%s", view)
	}
}

func TestConsoleIgnoresStaleDetail(t *testing.T) {
	m := NewConsoleModel(context.Background(), &fakeBackend{}, Options{}).(*consoleModel)
	m.validations = []validation.ValidationRequest{{ID: "v-1"}, {ID: "v-2"}}
	m.selectedIndex = 1

	m.Update(detailLoadedMsg{validationID: "v-1", detail: labvalidation.ValidationStatusView{Request: m.validations[0]}})
	if m.hasDetail {
		t.Fatalf("stale detail should be ignored")
	}
}

func TestConsoleAssignBestAndExpire(t *testing.T) {
	best := validation.LabOption{LabID: "lab-1", Price: 1890, EstimatedDays: 12}
	backend := &fakeBackend{
		validations: []validation.ValidationRequest{{ID: "v-1", Status: validation.StatusPending}},
		market:      labvalidation.MarketplaceResult{Options: []validation.LabOption{best}, Recommendation: &best},
	}
	m := NewConsoleModel(context.Background(), backend, Options{}).(*consoleModel)
	m.validations = backend.validations

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	runCmd(t, m, cmd)
	if len(backend.assigned) != 1 || backend.assigned[0].LabID != "lab-1" || backend.assigned[0].Price != 1890 {
		t.Fatalf("assigned = %+v", backend.assigned)
	}
	if len(m.auditLogs) != 1 || !strings.Contains(m.auditLogs[0], "assign v-1 -> lab-1") {
		t.Fatalf("audit = %v", m.auditLogs)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	runCmd(t, m, cmd)
	if len(backend.expired) != 1 || backend.expired[0] != "v-1" {
		t.Fatalf("expired = %v", backend.expired)
	}
}

func TestConsoleAssignWithoutLabs(t *testing.T) {
	backend := &fakeBackend{validations: []validation.ValidationRequest{{ID: "v-1"}}}
	m := NewConsoleModel(context.Background(), backend, Options{}).(*consoleModel)
	m.validations = backend.validations

	msg := m.assignBestCmd()()
	done, ok := msg.(actionDoneMsg)
	if !ok || !errors.Is(done.err, validation.ErrNoLabsAvailable) {
		t.Fatalf("assignBestCmd() = %#v", msg)
	}
	if len(backend.assigned) != 0 {
		t.Fatalf("assigned = %+v", backend.assigned)
	}
}

func TestConsoleRefreshError(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("db down")}
	m := NewConsoleModel(context.Background(), backend, Options{}).(*consoleModel)
	m.Update(m.loadCmd()())
	if !strings.Contains(m.status, "db down") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestNormalizeStatusFilter(t *testing.T) {
	testCases := []struct {
		input string
		want  validation.ValidationStatus
	}{
		{input: "", want: ""},
		{input: "in_analysis", want: validation.StatusInAnalysis},
		{input: " REJECTED ", want: validation.StatusRejected},
		{input: "bogus", want: ""},
	}
	for _, testCase := range testCases {
		if got := normalizeStatusFilter(testCase.input); got != testCase.want {
			t.Fatalf("normalizeStatusFilter(%q) = %q, want %q", testCase.input, got, testCase.want)
		}
	}
}

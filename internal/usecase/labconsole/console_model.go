package labconsole

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trustlab/internal/domain/validation"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

const maxAuditLines = 8

// Backend is the part of the lab validation service the console drives.
type Backend interface {
	ListLaboratories(ctx context.Context, filter ports.LabFilter) ([]validation.Laboratory, error)
	ListValidations(ctx context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error)
	GetValidationStatus(ctx context.Context, validationID string) (labvalidation.ValidationStatusView, error)
	Marketplace(ctx context.Context, validationID string) (labvalidation.MarketplaceResult, error)
	AssignLab(ctx context.Context, input labvalidation.AssignLabInput) (labvalidation.AssignLabResult, error)
	ExpireValidation(ctx context.Context, validationID string) error
}

type Options struct {
	StatusFilter    string
	Limit           int
	RefreshInterval time.Duration
}

type consoleModel struct {
	ctx             context.Context
	backend         Backend
	statusFilter    validation.ValidationStatus
	limit           int
	refreshInterval time.Duration

	labs          []validation.Laboratory
	validations   []validation.ValidationRequest
	selectedIndex int
	detail        labvalidation.ValidationStatusView
	hasDetail     bool
	status        string
	auditLogs     []string
}

type dataLoadedMsg struct {
	labs        []validation.Laboratory
	validations []validation.ValidationRequest
	err         error
}

type detailLoadedMsg struct {
	validationID string
	detail       labvalidation.ValidationStatusView
	err          error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action       string
	validationID string
	result       string
	err          error
}

func NewConsoleModel(ctx context.Context, backend Backend, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 50
	}
	return &consoleModel{
		ctx:             ctx,
		backend:         backend,
		statusFilter:    normalizeStatusFilter(options.StatusFilter),
		limit:           limit,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *consoleModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case dataLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.labs = msg.labs
		m.validations = msg.validations
		if len(m.validations) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no validation requests"
			return m, nil
		}
		if m.selectedIndex >= len(m.validations) {
			m.selectedIndex = len(m.validations) - 1
		}
		m.status = fmt.Sprintf("refreshed: %d requests, %d labs", len(m.validations), len(m.labs))
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		if !m.isSelected(msg.validationID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.validationID, "failed: "+msg.err.Error())
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.validationID, msg.result)
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.validations)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "a":
			return m, m.assignBestCmd()
		case "x":
			return m, m.expireCmd()
		}
	}
	return m, nil
}

func (m *consoleModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Lab Validation Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s limit=%d refresh=%s",
		firstNonEmpty(string(m.statusFilter), "all"),
		m.limit,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Laboratories"))
	builder.WriteString("\n")
	if len(m.labs) == 0 {
		builder.WriteString(dimStyle.Render("- no laboratories"))
		builder.WriteString("\n")
	}
	for _, lab := range m.labs {
		builder.WriteString(fmt.Sprintf("  %s\n", formatLabLine(lab)))
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Requests"))
	builder.WriteString("\n")
	if len(m.validations) == 0 {
		builder.WriteString(dimStyle.Render("- no requests"))
		builder.WriteString("\n")
	}
	for index, req := range m.validations {
		line := fmt.Sprintf("%s [%s] product=%s points=%d", req.ID, req.Status, firstNonEmpty(req.ProductName, req.ProductID), len(req.DataPoints))
		if index == m.selectedIndex {
			builder.WriteString(selectedStyle.Render("> " + line))
		} else {
			builder.WriteString("  " + line)
		}
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n")
	} else {
		builder.WriteString(formatDetail(m.detail))
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n")
	}
	for _, line := range m.auditLogs {
		builder.WriteString("- " + line + "\n")
	}
	builder.WriteString("\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  a assign best lab  x expire  q quit"))
	return builder.String()
}

func (m *consoleModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *consoleModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		labs, err := m.backend.ListLaboratories(m.ctx, ports.LabFilter{})
		if err != nil {
			return dataLoadedMsg{err: err}
		}
		items, err := m.backend.ListValidations(m.ctx, ports.ValidationFilter{Status: m.statusFilter, Limit: m.limit})
		if err != nil {
			return dataLoadedMsg{err: err}
		}
		return dataLoadedMsg{labs: labs, validations: items}
	}
}

func (m *consoleModel) loadDetailCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.backend.GetValidationStatus(m.ctx, selected.ID)
		return detailLoadedMsg{validationID: selected.ID, detail: detail, err: err}
	}
}

// assignBestCmd assigns the selected pending request to the top ranked lab.
func (m *consoleModel) assignBestCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "no request selected"
		return nil
	}
	return func() tea.Msg {
		market, err := m.backend.Marketplace(m.ctx, selected.ID)
		if err != nil {
			return actionDoneMsg{action: "assign", validationID: selected.ID, err: err}
		}
		if market.Recommendation == nil {
			return actionDoneMsg{action: "assign", validationID: selected.ID, err: validation.ErrNoLabsAvailable}
		}
		best := *market.Recommendation
		out, err := m.backend.AssignLab(m.ctx, labvalidation.AssignLabInput{
			ValidationID:  selected.ID,
			LabID:         best.LabID,
			Price:         best.Price,
			EstimatedDays: best.EstimatedDays,
		})
		if err != nil {
			return actionDoneMsg{action: "assign", validationID: selected.ID, err: err}
		}
		return actionDoneMsg{
			action:       "assign",
			validationID: selected.ID,
			result:       fmt.Sprintf("%s price=%.2f days=%d", out.LabID, out.Price, out.EstimatedDays),
		}
	}
}

func (m *consoleModel) expireCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		m.status = "no request selected"
		return nil
	}
	return func() tea.Msg {
		err := m.backend.ExpireValidation(m.ctx, selected.ID)
		return actionDoneMsg{action: "expire", validationID: selected.ID, result: string(validation.StatusExpired), err: err}
	}
}

func (m *consoleModel) selected() (validation.ValidationRequest, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.validations) {
		return validation.ValidationRequest{}, false
	}
	return m.validations[m.selectedIndex], true
}

func (m *consoleModel) isSelected(validationID string) bool {
	selected, ok := m.selected()
	return ok && selected.ID == validationID
}

func (m *consoleModel) appendAuditLog(action, validationID, result string) {
	line := fmt.Sprintf("%s %s %s -> %s", time.Now().Format("15:04:05"), action, validationID, result)
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

func formatLabLine(lab validation.Laboratory) string {
	return fmt.Sprintf(
		"%s [%s] load=%d/%d (%.0f%%) rating=%.1f specialties=%s",
		lab.ID,
		lab.Status,
		lab.CurrentLoad,
		lab.Capacity,
		lab.Utilization(),
		lab.Rating,
		firstNonEmpty(strings.Join(lab.Specialties, ","), "-"),
	)
}

func formatDetail(view labvalidation.ValidationStatusView) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Request: %s\n", view.Request.ID))
	builder.WriteString(fmt.Sprintf("Status: %s\n", view.Request.Status))
	builder.WriteString(fmt.Sprintf("DataPoints: %s\n", firstNonEmpty(strings.Join(view.Request.DataPoints, ","), "-")))
	if view.Assignment != nil {
		builder.WriteString(fmt.Sprintf("Lab: %s (%s) price=%.2f days=%d\n", view.Assignment.LabID, view.Assignment.Status, view.Assignment.Price, view.Assignment.EstimatedDays))
	} else {
		builder.WriteString("Lab: none\n")
	}
	if view.Report != nil {
		builder.WriteString(fmt.Sprintf("Report: %s\n", view.Report.ReportNumber))
	}
	for _, r := range view.Results {
		builder.WriteString(fmt.Sprintf("- %s declared=%s measured=%s %s\n", r.DataPoint, firstNonEmpty(r.DeclaredValue, "-"), firstNonEmpty(r.MeasuredValue, "-"), r.Status))
	}
	if view.TrustScore != nil {
		builder.WriteString(fmt.Sprintf("TrustScore: %.1f\n", *view.TrustScore))
	}
	return builder.String()
}

func normalizeStatusFilter(raw string) validation.ValidationStatus {
	status, err := validation.ParseValidationStatus(raw)
	if err != nil {
		return ""
	}
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/infrastructure/persistence/sqlite/model"
	"trustlab/internal/ports"
)

type ValidationRepository struct {
	db *gorm.DB
}

var _ ports.ValidationRepository = (*ValidationRepository)(nil)

func NewValidationRepository(db *gorm.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

func (r *ValidationRepository) CreateValidationRequest(ctx context.Context, req validation.ValidationRequest) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("validation id is required")
	}

	row := model.ValidationRequest{
		ID:          req.ID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		BrandID:     req.BrandID,
		BrandName:   req.BrandName,
		Claims:      datatypes.NewJSONSlice(nonNilStrings(req.Claims)),
		DataPoints:  datatypes.NewJSONSlice(nonNilStrings(req.DataPoints)),
		Status:      string(req.Status),
		Priority:    string(req.Priority),
		CreatedAt:   formatTime(req.CreatedAt),
		UpdatedAt:   formatTime(req.UpdatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert validation request")
	}
	return nil
}

func (r *ValidationRepository) GetValidationRequest(ctx context.Context, id string) (validation.ValidationRequest, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.ValidationRequest{}, err
	}
	return getValidationRequestByID(db, id)
}

func (r *ValidationRepository) ListValidationRequests(ctx context.Context, filter ports.ValidationFilter) ([]validation.ValidationRequest, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ValidationRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if productID := strings.TrimSpace(filter.ProductID); productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.ValidationRequest
	if err := query.Order("created_at desc, id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query validation requests")
	}

	items := make([]validation.ValidationRequest, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapValidationRequest(row))
	}
	return items, nil
}

func (r *ValidationRepository) UpdateValidationStatus(
	ctx context.Context,
	id string,
	from validation.ValidationStatus,
	to validation.ValidationStatus,
	updatedAt time.Time,
) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.ValidationRequest{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": formatTime(updatedAt),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update validation status")
	}
	if result.RowsAffected == 0 {
		current, err := getValidationRequestByID(db, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %s, found %s", ports.ErrStatusConflict, from, current.Status)
	}
	return nil
}

func (r *ValidationRepository) CreateAssignment(ctx context.Context, assignment validation.LabAssignment) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.LabAssignment{
		ID:            assignment.ID,
		ValidationID:  assignment.ValidationID,
		LabID:         assignment.LabID,
		Status:        string(assignment.Status),
		Price:         assignment.Price,
		EstimatedDays: assignment.EstimatedDays,
		AssignedAt:    formatTime(assignment.AssignedAt),
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "insert lab assignment")
	}
	if result.RowsAffected == 0 {
		return ports.ErrAlreadyAssigned
	}
	return nil
}

func (r *ValidationRepository) GetAssignment(ctx context.Context, validationID string) (validation.LabAssignment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.LabAssignment{}, err
	}

	var row model.LabAssignment
	if err := db.Where("validation_id = ?", validationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.LabAssignment{}, ports.ErrAssignmentNotFound
		}
		return validation.LabAssignment{}, errs.Wrap(err, "query lab assignment")
	}

	return validation.LabAssignment{
		ID:            row.ID,
		ValidationID:  row.ValidationID,
		LabID:         row.LabID,
		Status:        validation.AssignmentStatus(row.Status),
		Price:         row.Price,
		EstimatedDays: row.EstimatedDays,
		AssignedAt:    parseTime(row.AssignedAt),
		CompletedAt:   parseOptionalTime(row.CompletedAt),
	}, nil
}

func (r *ValidationRepository) CompleteAssignment(ctx context.Context, validationID string, completedAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	completed := formatTime(completedAt)
	result := db.Model(&model.LabAssignment{}).
		Where("validation_id = ? AND status <> ?", validationID, string(validation.AssignmentCompleted)).
		Updates(map[string]any{
			"status":       string(validation.AssignmentCompleted),
			"completed_at": completed,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "complete lab assignment")
	}
	if result.RowsAffected == 0 {
		return ports.ErrAssignmentNotFound
	}
	return nil
}

func (r *ValidationRepository) CreateReport(ctx context.Context, report validation.LabReport) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	results := make([]model.ReportResult, 0, len(report.Results))
	for _, res := range report.Results {
		results = append(results, model.ReportResult{
			DataPoint: res.DataPoint,
			Declared:  res.Declared,
			Measured:  res.Measured,
			Unit:      res.Unit,
			Tolerance: res.Tolerance,
			Remarks:   res.Remarks,
		})
	}

	row := model.LabReport{
		ID:           report.ID,
		ValidationID: report.ValidationID,
		LabID:        report.LabID,
		ReportNumber: report.ReportNumber,
		ReportFile:   report.ReportFile,
		Results:      datatypes.NewJSONSlice(results),
		Methodology:  report.Methodology,
		Observations: report.Observations,
		IssuedAt:     formatTime(report.IssuedAt),
		ExpiresAt:    formatTime(report.ExpiresAt),
		Hash:         report.Hash,
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "insert lab report")
	}
	if result.RowsAffected == 0 {
		return ports.ErrReportExists
	}
	return nil
}

func (r *ValidationRepository) GetReport(ctx context.Context, validationID string) (validation.LabReport, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.LabReport{}, err
	}

	var row model.LabReport
	if err := db.Where("validation_id = ?", validationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.LabReport{}, ports.ErrReportNotFound
		}
		return validation.LabReport{}, errs.Wrap(err, "query lab report")
	}

	results := make([]validation.PointResult, 0, len(row.Results))
	for _, res := range row.Results {
		results = append(results, validation.PointResult{
			DataPoint: res.DataPoint,
			Declared:  res.Declared,
			Measured:  res.Measured,
			Unit:      res.Unit,
			Tolerance: res.Tolerance,
			Remarks:   res.Remarks,
		})
	}

	return validation.LabReport{
		ID:           row.ID,
		ValidationID: row.ValidationID,
		LabID:        row.LabID,
		ReportNumber: row.ReportNumber,
		ReportFile:   row.ReportFile,
		Results:      results,
		Methodology:  row.Methodology,
		Observations: row.Observations,
		IssuedAt:     parseTime(row.IssuedAt),
		ExpiresAt:    parseTime(row.ExpiresAt),
		Hash:         row.Hash,
	}, nil
}

// CountReportsIssuedIn counts reports whose issued_at falls in the given UTC year.
func (r *ValidationRepository) CountReportsIssuedIn(ctx context.Context, year int) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.LabReport{}).
		Where("issued_at LIKE ?", fmt.Sprintf("%04d-%%", year)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count lab reports")
	}
	return int(count), nil
}

func (r *ValidationRepository) AppendValidationResults(ctx context.Context, results []validation.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	rows := make([]model.ValidationResult, 0, len(results))
	for _, res := range results {
		rows = append(rows, model.ValidationResult{
			ID:            res.ID,
			ValidationID:  res.ValidationID,
			DataPoint:     res.DataPoint,
			DeclaredValue: res.DeclaredValue,
			MeasuredValue: res.MeasuredValue,
			Unit:          res.Unit,
			Status:        string(res.Status),
			Tolerance:     res.Tolerance,
			Remarks:       res.Remarks,
			CreatedAt:     now,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert validation results")
	}
	return nil
}

func (r *ValidationRepository) ListValidationResults(ctx context.Context, validationID string) ([]validation.ValidationResult, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ValidationResult
	if err := db.
		Where("validation_id = ?", validationID).
		Order("rowid asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query validation results")
	}

	items := make([]validation.ValidationResult, 0, len(rows))
	for _, row := range rows {
		items = append(items, validation.ValidationResult{
			ID:            row.ID,
			ValidationID:  row.ValidationID,
			DataPoint:     row.DataPoint,
			DeclaredValue: row.DeclaredValue,
			MeasuredValue: row.MeasuredValue,
			Unit:          row.Unit,
			Status:        validation.PointStatus(row.Status),
			Tolerance:     row.Tolerance,
			Remarks:       row.Remarks,
		})
	}
	return items, nil
}

func (r *ValidationRepository) AppendTrustScore(ctx context.Context, record validation.TrustScoreRecord) (validation.TrustScoreRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.TrustScoreRecord{}, err
	}

	row := model.TrustScore{
		ProductID:    record.ProductID,
		ValidationID: record.ValidationID,
		Score:        record.Score,
		Components:   datatypes.NewJSONType(record.Components),
		CalculatedAt: formatTime(record.CalculatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return validation.TrustScoreRecord{}, errs.Wrap(err, "insert trust score")
	}
	return mapTrustScore(row), nil
}

// ListTrustScores returns the newest entries first.
func (r *ValidationRepository) ListTrustScores(ctx context.Context, productID string, limit int) ([]validation.TrustScoreRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("product_id = ?", productID).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.TrustScore
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query trust scores")
	}

	items := make([]validation.TrustScoreRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTrustScore(row))
	}
	return items, nil
}

func getValidationRequestByID(db *gorm.DB, id string) (validation.ValidationRequest, error) {
	var row model.ValidationRequest
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.ValidationRequest{}, ports.ErrValidationNotFound
		}
		return validation.ValidationRequest{}, errs.Wrap(err, "query validation request by id")
	}
	return mapValidationRequest(row), nil
}

func mapValidationRequest(row model.ValidationRequest) validation.ValidationRequest {
	return validation.ValidationRequest{
		ID:          row.ID,
		ProductID:   row.ProductID,
		ProductName: row.ProductName,
		BrandID:     row.BrandID,
		BrandName:   row.BrandName,
		Claims:      nonNilStrings(row.Claims),
		DataPoints:  nonNilStrings(row.DataPoints),
		Status:      validation.ValidationStatus(row.Status),
		Priority:    validation.Priority(row.Priority),
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}
}

func mapTrustScore(row model.TrustScore) validation.TrustScoreRecord {
	return validation.TrustScoreRecord{
		ID:           row.ID,
		ProductID:    row.ProductID,
		ValidationID: row.ValidationID,
		Score:        row.Score,
		Components:   row.Components.Data(),
		CalculatedAt: parseTime(row.CalculatedAt),
	}
}

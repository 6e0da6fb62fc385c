package repository

import (
	"context"
	"errors"
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

type LabRepository struct {
	db *gorm.DB
}

var _ ports.LabRepository = (*LabRepository)(nil)

func NewLabRepository(db *gorm.DB) *LabRepository {
	return &LabRepository{db: db}
}

func (r *LabRepository) ListAvailableLabs(ctx context.Context) ([]validation.Laboratory, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Laboratory
	if err := db.
		Where("status = ? AND current_load < capacity", string(validation.LabAvailable)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query available laboratories")
	}
	return mapLabs(rows), nil
}

func (r *LabRepository) ListLabs(ctx context.Context, filter ports.LabFilter) ([]validation.Laboratory, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Laboratory{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var rows []model.Laboratory
	if err := query.Order("rating desc, id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query laboratories")
	}

	labs := mapLabs(rows)
	specialty := strings.ToLower(strings.TrimSpace(filter.Specialty))
	if specialty == "" {
		return labs, nil
	}

	filtered := make([]validation.Laboratory, 0, len(labs))
	for _, lab := range labs {
		for _, s := range lab.Specialties {
			if strings.ToLower(s) == specialty {
				filtered = append(filtered, lab)
				break
			}
		}
	}
	return filtered, nil
}

func (r *LabRepository) GetLab(ctx context.Context, labID string) (validation.Laboratory, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.Laboratory{}, err
	}
	return getLabByID(db, labID)
}

func (r *LabRepository) UpsertLab(ctx context.Context, lab validation.Laboratory) (validation.Laboratory, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.Laboratory{}, err
	}

	if strings.TrimSpace(lab.ID) == "" {
		return validation.Laboratory{}, errors.New("laboratory id is required")
	}
	if !lab.Status.Valid() {
		return validation.Laboratory{}, validation.ErrInvalidLabStatus
	}
	if lab.Capacity < 0 {
		return validation.Laboratory{}, errors.New("laboratory capacity must not be negative")
	}

	taxID := nullableString(lab.TaxID)
	if taxID != nil {
		var owners int64
		if err := db.Model(&model.Laboratory{}).
			Where("tax_id = ? AND id <> ?", *taxID, lab.ID).
			Count(&owners).Error; err != nil {
			return validation.Laboratory{}, errs.Wrap(err, "check laboratory tax id")
		}
		if owners > 0 {
			return validation.Laboratory{}, errs.Wrapf(ports.ErrTaxIDTaken, "upsert laboratory %q", lab.ID)
		}
	}

	now := formatTime(time.Now())
	createdAt := now
	if !lab.CreatedAt.IsZero() {
		createdAt = formatTime(lab.CreatedAt)
	}
	row := model.Laboratory{
		ID:             lab.ID,
		Name:           lab.Name,
		TaxID:          taxID,
		Accreditations: datatypes.NewJSONSlice(nonNilStrings(lab.Accreditations)),
		Specialties:    datatypes.NewJSONSlice(nonNilStrings(lab.Specialties)),
		Capacity:       lab.Capacity,
		CurrentLoad:    lab.CurrentLoad,
		Rating:         lab.Rating,
		Status:         string(lab.Status),
		CreatedAt:      createdAt,
		UpdatedAt:      now,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":           row.Name,
			"tax_id":         row.TaxID,
			"accreditations": row.Accreditations,
			"specialties":    row.Specialties,
			"capacity":       row.Capacity,
			"rating":         row.Rating,
			"status":         row.Status,
			"updated_at":     row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return validation.Laboratory{}, errs.Wrapf(err, "upsert laboratory %q", lab.ID)
	}

	return getLabByID(db, lab.ID)
}

func (r *LabRepository) UpdateLabStatus(ctx context.Context, labID string, status validation.LabStatus) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}
	if !status.Valid() {
		return validation.ErrInvalidLabStatus
	}

	result := db.Model(&model.Laboratory{}).
		Where("id = ?", labID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": formatTime(time.Now()),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update laboratory status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrLabNotFound
	}
	return nil
}

// UpdateLabLoad applies delta with a single conditional UPDATE so that two
// concurrent reservations can never push current_load past capacity.
func (r *LabRepository) UpdateLabLoad(ctx context.Context, labID string, delta int) (validation.Laboratory, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return validation.Laboratory{}, err
	}

	result := db.Model(&model.Laboratory{}).
		Where("id = ? AND current_load + ? >= 0 AND current_load + ? <= capacity", labID, delta, delta).
		Updates(map[string]any{
			"current_load": gorm.Expr("current_load + ?", delta),
			"updated_at":   formatTime(time.Now()),
		})
	if result.Error != nil {
		return validation.Laboratory{}, errs.Wrap(result.Error, "update laboratory load")
	}

	if result.RowsAffected == 0 {
		if _, err := getLabByID(db, labID); err != nil {
			return validation.Laboratory{}, err
		}
		if delta > 0 {
			return validation.Laboratory{}, validation.ErrCapacityExceeded
		}
		return validation.Laboratory{}, validation.ErrLoadUnderflow
	}

	return getLabByID(db, labID)
}

func getLabByID(db *gorm.DB, labID string) (validation.Laboratory, error) {
	var row model.Laboratory
	if err := db.Where("id = ?", labID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.Laboratory{}, ports.ErrLabNotFound
		}
		return validation.Laboratory{}, errs.Wrap(err, "query laboratory by id")
	}
	return mapLab(row), nil
}

func mapLabs(rows []model.Laboratory) []validation.Laboratory {
	labs := make([]validation.Laboratory, 0, len(rows))
	for _, row := range rows {
		labs = append(labs, mapLab(row))
	}
	return labs
}

func mapLab(row model.Laboratory) validation.Laboratory {
	return validation.Laboratory{
		ID:             row.ID,
		Name:           row.Name,
		TaxID:          derefString(row.TaxID),
		Accreditations: nonNilStrings(row.Accreditations),
		Specialties:    nonNilStrings(row.Specialties),
		Capacity:       row.Capacity,
		CurrentLoad:    row.CurrentLoad,
		Rating:         row.Rating,
		Status:         validation.LabStatus(row.Status),
		CreatedAt:      parseTime(row.CreatedAt),
	}
}

// nullableString stores blank values as NULL so the unique tax id index
// only applies to labs that declare one.
func nullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

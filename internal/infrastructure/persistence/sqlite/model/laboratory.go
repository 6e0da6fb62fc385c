package model

import "gorm.io/datatypes"

type Laboratory struct {
	ID             string                      `gorm:"column:id;type:text;primaryKey"`
	Name           string                      `gorm:"column:name;type:text;not null"`
	TaxID          *string                     `gorm:"column:tax_id;type:text;uniqueIndex"`
	Accreditations datatypes.JSONSlice[string] `gorm:"column:accreditations;not null"`
	Specialties    datatypes.JSONSlice[string] `gorm:"column:specialties;not null"`
	Capacity       int                         `gorm:"column:capacity;not null;default:0"`
	CurrentLoad    int                         `gorm:"column:current_load;not null;default:0;check:chk_laboratories_load,current_load >= 0 AND current_load <= capacity"`
	Rating         float64                     `gorm:"column:rating;not null;default:0"`
	Status         string                      `gorm:"column:status;type:text;not null;index"`
	CreatedAt      string                      `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string                      `gorm:"column:updated_at;type:text;not null"`
}

func (Laboratory) TableName() string {
	return "laboratories"
}

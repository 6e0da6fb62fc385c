package model

import "gorm.io/datatypes"

type ValidationRequest struct {
	ID          string                      `gorm:"column:id;type:text;primaryKey"`
	ProductID   string                      `gorm:"column:product_id;type:text;not null;index"`
	ProductName string                      `gorm:"column:product_name;type:text;not null"`
	BrandID     string                      `gorm:"column:brand_id;type:text;not null"`
	BrandName   string                      `gorm:"column:brand_name;type:text;not null"`
	Claims      datatypes.JSONSlice[string] `gorm:"column:claims;not null"`
	DataPoints  datatypes.JSONSlice[string] `gorm:"column:data_points;not null"`
	Status      string                      `gorm:"column:status;type:text;not null;index"`
	Priority    string                      `gorm:"column:priority;type:text;not null"`
	CreatedAt   string                      `gorm:"column:created_at;type:text;not null;index"`
	UpdatedAt   string                      `gorm:"column:updated_at;type:text;not null"`
}

func (ValidationRequest) TableName() string {
	return "validation_requests"
}

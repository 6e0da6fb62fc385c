package model

import (
	"gorm.io/datatypes"

	"trustlab/internal/domain/validation"
)

// TrustScore rows are append-only.
type TrustScore struct {
	ID           uint64                                         `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID    string                                         `gorm:"column:product_id;type:text;not null;index"`
	ValidationID string                                         `gorm:"column:validation_id;type:text;not null;index"`
	Score        float64                                        `gorm:"column:score;not null"`
	Components   datatypes.JSONType[validation.ScoreComponents] `gorm:"column:components;not null"`
	CalculatedAt string                                         `gorm:"column:calculated_at;type:text;not null;index"`
}

func (TrustScore) TableName() string {
	return "trust_scores"
}

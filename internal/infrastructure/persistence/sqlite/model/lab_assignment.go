package model

type LabAssignment struct {
	ID            string  `gorm:"column:id;type:text;primaryKey"`
	ValidationID  string  `gorm:"column:validation_id;type:text;not null;uniqueIndex"`
	LabID         string  `gorm:"column:lab_id;type:text;not null;index"`
	Status        string  `gorm:"column:status;type:text;not null"`
	Price         float64 `gorm:"column:price;not null"`
	EstimatedDays int     `gorm:"column:estimated_days;not null"`
	AssignedAt    string  `gorm:"column:assigned_at;type:text;not null"`
	CompletedAt   *string `gorm:"column:completed_at;type:text"`
}

func (LabAssignment) TableName() string {
	return "lab_assignments"
}

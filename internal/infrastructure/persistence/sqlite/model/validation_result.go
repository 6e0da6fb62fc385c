package model

type ValidationResult struct {
	ID            string `gorm:"column:id;type:text;primaryKey"`
	ValidationID  string `gorm:"column:validation_id;type:text;not null;index"`
	DataPoint     string `gorm:"column:data_point;type:text;not null"`
	DeclaredValue string `gorm:"column:declared_value;type:text;not null"`
	MeasuredValue string `gorm:"column:measured_value;type:text;not null"`
	Unit          string `gorm:"column:unit;type:text;not null"`
	Status        string `gorm:"column:status;type:text;not null"`
	Tolerance     string `gorm:"column:tolerance;type:text;not null"`
	Remarks       string `gorm:"column:remarks;type:text;not null"`
	CreatedAt     string `gorm:"column:created_at;type:text;not null"`
}

func (ValidationResult) TableName() string {
	return "validation_results"
}

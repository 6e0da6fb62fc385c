package model

import "gorm.io/datatypes"

// ReportResult is one raw data point as stored inside lab_reports.results.
type ReportResult struct {
	DataPoint string `json:"data_point"`
	Declared  string `json:"declared"`
	Measured  string `json:"measured"`
	Unit      string `json:"unit,omitempty"`
	Tolerance string `json:"tolerance,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
}

type LabReport struct {
	ID           string                            `gorm:"column:id;type:text;primaryKey"`
	ValidationID string                            `gorm:"column:validation_id;type:text;not null;uniqueIndex"`
	LabID        string                            `gorm:"column:lab_id;type:text;not null;index"`
	ReportNumber string                            `gorm:"column:report_number;type:text;not null;uniqueIndex"`
	ReportFile   string                            `gorm:"column:report_file;type:text;not null"`
	Results      datatypes.JSONSlice[ReportResult] `gorm:"column:results;not null"`
	Methodology  string                            `gorm:"column:methodology;type:text;not null"`
	Observations string                            `gorm:"column:observations;type:text;not null"`
	IssuedAt     string                            `gorm:"column:issued_at;type:text;not null;index"`
	ExpiresAt    string                            `gorm:"column:expires_at;type:text;not null"`
	Hash         string                            `gorm:"column:hash;type:text;not null"`
}

func (LabReport) TableName() string {
	return "lab_reports"
}

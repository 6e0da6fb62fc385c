package validation

import "time"

type Laboratory struct {
	ID             string
	Name           string
	TaxID          string
	Accreditations []string
	Specialties    []string
	Capacity       int
	CurrentLoad    int
	Rating         float64
	Status         LabStatus
	CreatedAt      time.Time
}

// LoadFraction is current_load / capacity, 1 for a lab without capacity.
func (l Laboratory) LoadFraction() float64 {
	if l.Capacity <= 0 {
		return 1
	}
	return float64(l.CurrentLoad) / float64(l.Capacity)
}

// Accepting reports whether the lab can take a new assignment right now.
func (l Laboratory) Accepting() bool {
	return l.Status == LabAvailable && l.CurrentLoad < l.Capacity
}

// Utilization is the load percentage rounded to one decimal.
func (l Laboratory) Utilization() float64 {
	if l.Capacity <= 0 {
		return 0
	}
	return roundTo(l.LoadFraction()*100, 1)
}

type ValidationRequest struct {
	ID          string
	ProductID   string
	ProductName string
	BrandID     string
	BrandName   string
	Claims      []string
	DataPoints  []string
	Status      ValidationStatus
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LabAssignment struct {
	ID            string
	ValidationID  string
	LabID         string
	Status        AssignmentStatus
	Price         float64
	EstimatedDays int
	AssignedAt    time.Time
	CompletedAt   *time.Time
}

// PointResult is one raw data point as reported by a laboratory.
type PointResult struct {
	DataPoint string `json:"-"`
	Declared  string `json:"declared"`
	Measured  string `json:"measured"`
	Unit      string `json:"unit,omitempty"`
	Tolerance string `json:"tolerance,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
}

type LabReport struct {
	ID           string
	ValidationID string
	LabID        string
	ReportNumber string
	ReportFile   string
	Results      []PointResult
	Methodology  string
	Observations string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Hash         string
}

type ValidationResult struct {
	ID            string
	ValidationID  string
	DataPoint     string
	DeclaredValue string
	MeasuredValue string
	Unit          string
	Status        PointStatus
	Tolerance     string
	Remarks       string
}

// ScoreComponents is the stored display breakdown of a trust score.
type ScoreComponents struct {
	ValidationScore float64 `json:"validation_score"`
	LabQuality      float64 `json:"lab_quality"`
	Accreditations  float64 `json:"accreditations"`
}

type TrustScoreRecord struct {
	ID           uint64
	ProductID    string
	ValidationID string
	Score        float64
	Components   ScoreComponents
	CalculatedAt time.Time
}

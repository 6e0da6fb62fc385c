package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultTolerance = 5.0

	remarksToleranceFactor = 1.5

	validationWeight       = 70.0
	labQualityWeight       = 20.0
	maxLabRating           = 5.0
	pointsPerAccreditation = 2
	maxAccreditationPts    = 10.0

	componentValidationShare = 0.7
	componentLabShare        = 0.2
	componentAccredShare     = 0.1
)

// DeterminePointStatus compares a measured value with its declared value.
// tolerance is a percentage; empty means DefaultTolerance.
func DeterminePointStatus(declared, measured, tolerance string) PointStatus {
	if strings.TrimSpace(declared) == "" || strings.TrimSpace(measured) == "" {
		return PointNotTested
	}

	diff, tol, err := percentDeviation(declared, measured, tolerance)
	if err != nil {
		return PointError
	}

	switch {
	case diff <= tol:
		return PointValidated
	case diff <= tol*remarksToleranceFactor:
		return PointValidatedWithRemarks
	default:
		return PointRejected
	}
}

// percentDeviation returns |measured - declared| / declared * 100 and the parsed tolerance.
func percentDeviation(declared, measured, tolerance string) (float64, float64, error) {
	d, err := parseFinite(declared)
	if err != nil {
		return 0, 0, err
	}
	m, err := parseFinite(measured)
	if err != nil {
		return 0, 0, err
	}
	if d == 0 {
		return 0, 0, fmt.Errorf("%w: declared value is zero", ErrInvalidResult)
	}

	tol := DefaultTolerance
	if strings.TrimSpace(tolerance) != "" {
		tol, err = parseFinite(tolerance)
		if err != nil {
			return 0, 0, err
		}
	}

	return math.Abs((m - d) / d * 100), tol, nil
}

func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResult, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidResult, raw)
	}
	return v, nil
}

// DetermineOverallStatus aggregates point statuses; the first matching rule wins:
// all validated, any rejected, any with remarks. Anything else (for example only
// not_tested/error points, or no points at all) falls back to validated.
func DetermineOverallStatus(statuses []PointStatus) ValidationStatus {
	allValidated := true
	anyRejected := false
	anyRemarks := false
	for _, s := range statuses {
		if s != PointValidated {
			allValidated = false
		}
		switch s {
		case PointRejected:
			anyRejected = true
		case PointValidatedWithRemarks:
			anyRemarks = true
		}
	}

	switch {
	case allValidated:
		return StatusValidated
	case anyRejected:
		return StatusRejected
	case anyRemarks:
		return StatusValidatedWithRemarks
	default:
		return StatusValidated
	}
}

// LabQuality is the part of a laboratory the trust score depends on.
type LabQuality struct {
	Rating             float64
	AccreditationCount int
}

func QualityOf(lab Laboratory) LabQuality {
	return LabQuality{Rating: lab.Rating, AccreditationCount: len(lab.Accreditations)}
}

// TrustScore is the outcome of a trust score calculation.
type TrustScore struct {
	Score              float64
	ValidationScore    float64
	LabScore           float64
	AccreditationScore float64
}

// Components derives the stored 0.7/0.2/0.1 split of the final score.
func (t TrustScore) Components() ScoreComponents {
	return ScoreComponents{
		ValidationScore: t.Score * componentValidationShare,
		LabQuality:      t.Score * componentLabShare,
		Accreditations:  t.Score * componentAccredShare,
	}
}

// ComputeTrustScore weights the share of validated points (70), lab rating (20)
// and accreditations (10). lab may be nil when no performing lab is known.
func ComputeTrustScore(statuses []PointStatus, lab *LabQuality) TrustScore {
	if len(statuses) == 0 {
		return TrustScore{}
	}

	validated := 0
	for _, s := range statuses {
		if s == PointValidated {
			validated++
		}
	}

	out := TrustScore{
		ValidationScore: float64(validated) / float64(len(statuses)) * validationWeight,
	}
	if lab != nil {
		out.LabScore = lab.Rating / maxLabRating * labQualityWeight
		out.AccreditationScore = math.Min(float64(lab.AccreditationCount*pointsPerAccreditation), maxAccreditationPts)
	}
	out.Score = roundTo(out.ValidationScore+out.LabScore+out.AccreditationScore, 1)
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

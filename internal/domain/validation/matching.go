package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	MaxLabOptions = 5

	pointsPerKeywordMatch = 10
	maxMatchScore         = 100

	basePrice          = 1500.0
	pricePerDataPoint  = 200.0
	urgentMultiplier   = 1.5
	maxLoadDiscount    = 0.2
	baseDays           = 7
	maxLoadDelayFactor = 0.5
)

// Catalog maps a laboratory specialty to the data point keywords it covers.
type Catalog map[string][]string

// DefaultCatalog returns the built-in specialty table.
func DefaultCatalog() Catalog {
	return Catalog{
		"nutricional":   {"proteínas", "carboidratos", "gorduras", "vitaminas", "minerais"},
		"microbiologia": {"salmonella", "e_coli", "coliformes", "fungos"},
		"contaminantes": {"metais_pesados", "pesticidas", "micotoxinas"},
		"alergênicos":   {"gluten", "lactose", "amendoim", "soja"},
		"suplementos":   {"aminoácidos", "creatina", "whey", "bcaa"},
	}
}

// Normalize lower-cases specialties and keywords and drops blanks.
func (c Catalog) Normalize() Catalog {
	out := make(Catalog, len(c))
	for specialty, keywords := range c {
		key := normalizeLabel(specialty)
		if key == "" {
			continue
		}
		for _, keyword := range keywords {
			if kw := normalizeLabel(keyword); kw != "" {
				out[key] = append(out[key], kw)
			}
		}
	}
	return out
}

func (c Catalog) keywords(specialty string) ([]string, bool) {
	kws, ok := c[normalizeLabel(specialty)]
	return kws, ok
}

// LabOption is one ranked laboratory offer for a validation request.
type LabOption struct {
	LabID          string   `json:"lab_id"`
	LabName        string   `json:"lab_name"`
	Rating         float64  `json:"rating"`
	Accreditations []string `json:"accreditations"`
	MatchScore     int      `json:"match_score"`
	Price          float64  `json:"price"`
	EstimatedDays  int      `json:"estimated_days"`
	CurrentLoad    string   `json:"current_load"`
	LoadFraction   float64  `json:"load_fraction"`
	Specialties    []string `json:"specialties"`
}

// MatchScore adds 10 points per (declared specialty, data point) pair where the
// data point name contains one of the specialty's keywords. Capped at 100.
// A specialty declared more than once, in any letter case, counts once.
func MatchScore(specialties []string, dataPoints []string, catalog Catalog) int {
	score := 0
	seen := make(map[string]struct{}, len(specialties))
	for _, specialty := range specialties {
		label := normalizeLabel(specialty)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}

		keywords, ok := catalog.keywords(label)
		if !ok {
			continue
		}
		for _, point := range dataPoints {
			if containsAny(strings.ToLower(point), keywords) {
				score += pointsPerKeywordMatch
			}
		}
	}
	if score > maxMatchScore {
		return maxMatchScore
	}
	return score
}

// QuotePrice discounts busier labs by up to 20%.
func QuotePrice(dataPoints int, priority Priority, loadFraction float64) float64 {
	base := basePrice + pricePerDataPoint*float64(dataPoints)
	multiplier := 1.0
	if priority == PriorityUrgent {
		multiplier = urgentMultiplier
	}
	price := base * multiplier * (1 - maxLoadDiscount*clampFraction(loadFraction))
	return roundTo(price, 2)
}

// QuoteDays stretches the base turnaround by up to 50% with load.
func QuoteDays(dataPoints int, loadFraction float64) int {
	days := float64(baseDays + dataPoints)
	factor := 1 + maxLoadDelayFactor*clampFraction(loadFraction)
	return int(math.Floor(days * factor))
}

// Quote builds the option a lab would offer for the request.
func Quote(lab Laboratory, req ValidationRequest, catalog Catalog) LabOption {
	load := lab.LoadFraction()
	return LabOption{
		LabID:          lab.ID,
		LabName:        lab.Name,
		Rating:         lab.Rating,
		Accreditations: cloneStrings(lab.Accreditations),
		MatchScore:     MatchScore(lab.Specialties, req.DataPoints, catalog),
		Price:          QuotePrice(len(req.DataPoints), req.Priority, load),
		EstimatedDays:  QuoteDays(len(req.DataPoints), load),
		CurrentLoad:    fmt.Sprintf("%d/%d", lab.CurrentLoad, lab.Capacity),
		LoadFraction:   load,
		Specialties:    cloneStrings(lab.Specialties),
	}
}

// FindMatchingLabs ranks accepting labs by (match score, rating) descending and
// returns at most MaxLabOptions. An empty result means no lab is available.
func FindMatchingLabs(req ValidationRequest, labs []Laboratory, catalog Catalog) []LabOption {
	options := make([]LabOption, 0, len(labs))
	for _, lab := range labs {
		if !lab.Accepting() {
			continue
		}
		options = append(options, Quote(lab, req, catalog))
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].MatchScore != options[j].MatchScore {
			return options[i].MatchScore > options[j].MatchScore
		}
		return options[i].Rating > options[j].Rating
	})

	if len(options) > MaxLabOptions {
		options = options[:MaxLabOptions]
	}
	return options
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	}
	return f
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

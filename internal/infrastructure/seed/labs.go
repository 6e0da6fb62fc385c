package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
)

type labsFile struct {
	Laboratories []labEntry `yaml:"laboratories"`
}

type labEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	TaxID          string   `yaml:"tax_id"`
	Accreditations []string `yaml:"accreditations"`
	Specialties    []string `yaml:"specialties"`
	Capacity       int      `yaml:"capacity"`
	Rating         float64  `yaml:"rating"`
	Status         string   `yaml:"status"`
}

// DefaultLabs are the reference laboratories installed by seed-labs when no file is given.
func DefaultLabs() []validation.Laboratory {
	return []validation.Laboratory{
		{
			ID:             "lab_eurofins",
			Name:           "Eurofins Brasil",
			TaxID:          "00.000.000/0001-00",
			Accreditations: []string{"ISO 17025", "ANVISA", "MAPA"},
			Specialties:    []string{"microbiologia", "nutricional", "contaminantes"},
			Capacity:       200,
			Rating:         4.8,
			Status:         validation.LabAvailable,
		},
		{
			ID:             "lab_sgs",
			Name:           "SGS do Brasil",
			TaxID:          "00.000.000/0002-00",
			Accreditations: []string{"ISO 17025", "INMETRO"},
			Specialties:    []string{"alergênicos", "metais pesados", "pesticidas"},
			Capacity:       150,
			Rating:         4.7,
			Status:         validation.LabAvailable,
		},
		{
			ID:             "lab_sfdk",
			Name:           "SFDK Laboratório",
			TaxID:          "00.000.000/0003-00",
			Accreditations: []string{"ISO 17025", "FDA"},
			Specialties:    []string{"suplementos", "substâncias proibidas", "aminoácidos"},
			Capacity:       100,
			Rating:         4.9,
			Status:         validation.LabAvailable,
		},
	}
}

// ParseLabs decodes a YAML document with a top-level "laboratories" list.
func ParseLabs(data []byte) ([]validation.Laboratory, error) {
	var doc labsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(err, "decode laboratories yaml")
	}

	seen := make(map[string]struct{}, len(doc.Laboratories))
	labs := make([]validation.Laboratory, 0, len(doc.Laboratories))
	for i, entry := range doc.Laboratories {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("laboratories[%d]: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("laboratories[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}

		if entry.Capacity < 0 {
			return nil, fmt.Errorf("laboratories[%d]: capacity must not be negative", i)
		}
		if entry.Rating < 0 || entry.Rating > 5 {
			return nil, fmt.Errorf("laboratories[%d]: rating must be within [0, 5]", i)
		}

		status := validation.LabAvailable
		if strings.TrimSpace(entry.Status) != "" {
			parsed, err := validation.ParseLabStatus(entry.Status)
			if err != nil {
				return nil, fmt.Errorf("laboratories[%d]: %w", i, err)
			}
			status = parsed
		}

		labs = append(labs, validation.Laboratory{
			ID:             id,
			Name:           strings.TrimSpace(entry.Name),
			TaxID:          strings.TrimSpace(entry.TaxID),
			Accreditations: entry.Accreditations,
			Specialties:    entry.Specialties,
			Capacity:       entry.Capacity,
			Rating:         entry.Rating,
			Status:         status,
		})
	}
	return labs, nil
}

func LoadLabsFile(path string) ([]validation.Laboratory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read laboratories file %q", path)
	}
	return ParseLabs(data)
}

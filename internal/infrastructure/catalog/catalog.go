package catalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
)

type fileFormat struct {
	Specialties map[string][]string `toml:"specialties"`
}

// Parse decodes a TOML document of the form
//
//	[specialties]
//	nutricional = ["proteínas", "gorduras"]
func Parse(data []byte) (validation.Catalog, error) {
	var doc fileFormat
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(err, "decode specialty catalog")
	}

	out := validation.Catalog(doc.Specialties).Normalize()
	if len(out) == 0 {
		return nil, fmt.Errorf("specialty catalog has no specialties")
	}
	return out, nil
}

func LoadFile(path string) (validation.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read specialty catalog %q", path)
	}
	return Parse(data)
}

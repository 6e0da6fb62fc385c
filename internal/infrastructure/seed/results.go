package seed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
)

// ParseResults decodes a mapping of data point -> {declared, measured, unit,
// tolerance, remarks}. JSON is accepted as well. Results keep the key order of
// the document.
func ParseResults(data []byte) ([]validation.PointResult, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(err, "decode results yaml")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("results document is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("results must be a mapping keyed by data point (line %d)", root.Line)
	}

	out := make([]validation.PointResult, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("results[%q]: expected a mapping (line %d)", key.Value, value.Line)
		}
		res := validation.PointResult{DataPoint: strings.TrimSpace(key.Value)}
		for j := 0; j+1 < len(value.Content); j += 2 {
			field, v := value.Content[j], value.Content[j+1]
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("results[%q].%s: expected a scalar (line %d)", key.Value, field.Value, v.Line)
			}
			scalar := v.Value
			if v.Tag == "!!null" {
				scalar = ""
			}
			switch field.Value {
			case "declared":
				res.Declared = scalar
			case "measured":
				res.Measured = scalar
			case "unit":
				res.Unit = scalar
			case "tolerance":
				res.Tolerance = scalar
			case "remarks":
				res.Remarks = scalar
			default:
				return nil, fmt.Errorf("results[%q]: unknown field %q (line %d)", key.Value, field.Value, field.Line)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func LoadResultsFile(path string) ([]validation.PointResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read results file %q", path)
	}
	return ParseResults(data)
}

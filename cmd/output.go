package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

func labFilterFromFlags(rawStatus, specialty string) (ports.LabFilter, error) {
	filter := ports.LabFilter{Specialty: strings.TrimSpace(specialty)}
	if strings.TrimSpace(rawStatus) != "" {
		status, err := validation.ParseLabStatus(rawStatus)
		if err != nil {
			return ports.LabFilter{}, err
		}
		filter.Status = status
	}
	return filter, nil
}

func writeLabs(cmd *cobra.Command, labs []validation.Laboratory) error {
	if len(labs) == 0 {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no laboratories"); err != nil {
			return errs.Wrap(err, "write labs output")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "id\tname\tstatus\tload\tutilization\trating\tspecialties"); err != nil {
		return errs.Wrap(err, "write labs header")
	}
	for _, lab := range labs {
		if _, err := fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%d/%d\t%.1f%%\t%.1f\t%s\n",
			lab.ID,
			lab.Name,
			lab.Status,
			lab.CurrentLoad,
			lab.Capacity,
			lab.Utilization(),
			lab.Rating,
			dashIfEmpty(strings.Join(lab.Specialties, ",")),
		); err != nil {
			return errs.Wrap(err, "write lab row")
		}
	}
	return w.Flush()
}

func writeOptions(cmd *cobra.Command, options []validation.LabOption) error {
	if len(options) == 0 {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no laboratories available"); err != nil {
			return errs.Wrap(err, "write options output")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "rank\tlab_id\tlab_name\tmatch_score\tprice\testimated_days\tcurrent_load\trating"); err != nil {
		return errs.Wrap(err, "write options header")
	}
	for i, opt := range options {
		if _, err := fmt.Fprintf(
			w,
			"%d\t%s\t%s\t%d\t%.2f\t%d\t%s\t%.1f\n",
			i+1,
			opt.LabID,
			opt.LabName,
			opt.MatchScore,
			opt.Price,
			opt.EstimatedDays,
			opt.CurrentLoad,
			opt.Rating,
		); err != nil {
			return errs.Wrap(err, "write option row")
		}
	}
	return w.Flush()
}

func writeResults(cmd *cobra.Command, results []validation.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "data_point\tdeclared\tmeasured\tunit\tstatus"); err != nil {
		return errs.Wrap(err, "write results header")
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%s\t%s\n",
			r.DataPoint,
			dashIfEmpty(r.DeclaredValue),
			dashIfEmpty(r.MeasuredValue),
			dashIfEmpty(r.Unit),
			r.Status,
		); err != nil {
			return errs.Wrap(err, "write result row")
		}
	}
	return w.Flush()
}

// parseResultFlag reads name=declared,measured[,unit[,tolerance]].
func parseResultFlag(raw string) (validation.PointResult, error) {
	name, values, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return validation.PointResult{}, fmt.Errorf("invalid --result %q: want name=declared,measured[,unit[,tolerance]]", raw)
	}
	parts := strings.Split(values, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return validation.PointResult{}, fmt.Errorf("invalid --result %q: want name=declared,measured[,unit[,tolerance]]", raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	res := validation.PointResult{DataPoint: name, Declared: parts[0], Measured: parts[1]}
	if len(parts) > 2 {
		res.Unit = parts[2]
	}
	if len(parts) > 3 {
		res.Tolerance = parts[3]
	}
	return res, nil
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trustlab/internal/bootstrap"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/infrastructure/persistence/schema"
	"trustlab/internal/infrastructure/seed"
	"trustlab/internal/usecase/labvalidation"
)

var seedLabsCmd = &cobra.Command{
	Use:   "seed-labs",
	Short: "Install reference laboratories (or those listed in a YAML file)",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		file, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")

		seededAt, seeded, err := app.Meta(ctx, schema.MetaLabsSeededAt)
		if err != nil {
			return err
		}
		if seeded && !force && strings.TrimSpace(file) == "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "laboratories already seeded at %s (use --force to reinstall)\n", seededAt); err != nil {
				return errs.Wrap(err, "write seed output")
			}
			return nil
		}

		labs := seed.DefaultLabs()
		if strings.TrimSpace(file) != "" {
			labs, err = seed.LoadLabsFile(file)
			if err != nil {
				logging.Error(ctx, "load laboratories file failed", slog.Any("err", errs.Loggable(err)))
				return err
			}
		}

		n, err := svc.SeedLabs(ctx, labs)
		if err != nil {
			logging.Error(ctx, "seed laboratories failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed laboratories")
		}
		if err := app.SetMeta(ctx, schema.MetaLabsSeededAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded laboratories: %d\n", n); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

var labsCmd = &cobra.Command{
	Use:   "labs",
	Short: "Inspect and maintain laboratories",
}

var labsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List laboratories by rating",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawStatus, _ := cmd.Flags().GetString("status")
		specialty, _ := cmd.Flags().GetString("specialty")
		filter, err := labFilterFromFlags(rawStatus, specialty)
		if err != nil {
			return err
		}

		labs, err := svc.ListLaboratories(ctx, filter)
		if err != nil {
			logging.Error(ctx, "list laboratories failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list laboratories")
		}
		return writeLabs(cmd, labs)
	}),
}

var labsSetStatusCmd = &cobra.Command{
	Use:   "set-status",
	Short: "Set a laboratory to available, busy or offline",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		labID, _ := cmd.Flags().GetString("lab")
		status, _ := cmd.Flags().GetString("status")

		if err := svc.SetLabStatus(ctx, labID, status); err != nil {
			logging.Error(ctx, "set laboratory status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "set laboratory status")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "laboratory %s is now %s\n", labID, strings.ToLower(strings.TrimSpace(status))); err != nil {
			return errs.Wrap(err, "write set-status output")
		}
		return nil
	}),
}

var labsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register or update a single laboratory",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		lab, err := labFromFlags(cmd)
		if err != nil {
			return err
		}
		stored, err := svc.RegisterLab(ctx, lab)
		if err != nil {
			logging.Error(ctx, "register laboratory failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "register laboratory")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "registered laboratory: %s capacity=%d rating=%.1f\n", stored.ID, stored.Capacity, stored.Rating); err != nil {
			return errs.Wrap(err, "write add output")
		}
		return nil
	}),
}

func labFromFlags(cmd *cobra.Command) (validation.Laboratory, error) {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	taxID, _ := cmd.Flags().GetString("tax-id")
	accreditations, _ := cmd.Flags().GetStringSlice("accreditation")
	specialties, _ := cmd.Flags().GetStringSlice("specialty")
	capacity, _ := cmd.Flags().GetInt("capacity")
	rating, _ := cmd.Flags().GetFloat64("rating")
	rawStatus, _ := cmd.Flags().GetString("status")

	status, err := validation.ParseLabStatus(rawStatus)
	if err != nil {
		return validation.Laboratory{}, err
	}
	return validation.Laboratory{
		ID:             id,
		Name:           name,
		TaxID:          taxID,
		Accreditations: accreditations,
		Specialties:    specialties,
		Capacity:       capacity,
		Rating:         rating,
		Status:         status,
	}, nil
}

func init() {
	rootCmd.AddCommand(seedLabsCmd)
	seedLabsCmd.Flags().String("file", "", "YAML file with a top-level laboratories list (default: built-in reference labs)")
	seedLabsCmd.Flags().Bool("force", false, "Reinstall the reference laboratories even if already seeded")

	rootCmd.AddCommand(labsCmd)
	labsCmd.AddCommand(labsListCmd)
	labsCmd.AddCommand(labsSetStatusCmd)
	labsCmd.AddCommand(labsAddCmd)

	labsListCmd.Flags().String("status", "", "Optional status filter (available|busy|offline)")
	labsListCmd.Flags().String("specialty", "", "Optional specialty filter")

	labsSetStatusCmd.Flags().String("lab", "", "Laboratory id")
	labsSetStatusCmd.Flags().String("status", "", "New status (available|busy|offline)")
	_ = labsSetStatusCmd.MarkFlagRequired("lab")
	_ = labsSetStatusCmd.MarkFlagRequired("status")

	labsAddCmd.Flags().String("id", "", "Laboratory id")
	labsAddCmd.Flags().String("name", "", "Display name")
	labsAddCmd.Flags().String("tax-id", "", "Tax registration (CNPJ)")
	labsAddCmd.Flags().StringSlice("accreditation", nil, "Accreditation (repeatable)")
	labsAddCmd.Flags().StringSlice("specialty", nil, "Specialty (repeatable)")
	labsAddCmd.Flags().Int("capacity", 100, "Concurrent validations the lab accepts")
	labsAddCmd.Flags().Float64("rating", 5.0, "Rating in [0, 5]")
	labsAddCmd.Flags().String("status", string(validation.LabAvailable), "Initial status")
	_ = labsAddCmd.MarkFlagRequired("id")
}

package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"trustlab/internal/bootstrap"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
	"trustlab/internal/usecase/labconsole"
	"trustlab/internal/usecase/labvalidation"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the laboratory operations console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *labvalidation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := labconsole.NewConsoleModel(ctx, svc, labconsole.Options{
			StatusFilter:    status,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run lab console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("status", "", "Optional validation status filter (pending|in_analysis|validated|validated_with_remarks|rejected|expired)")
	consoleCmd.Flags().Int("limit", 50, "Maximum validations listed")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}

package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	"ctt/internal/errs"
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Reconcile PBS node states with open issues",
	Long: "auto opens issues for nodes PBS reports down, offline or state-unknown,\n" +
		"records state changes on open issues and, with enforcement on, drains\n" +
		"tracked nodes PBS no longer has offline. It is meant to run from cron.",
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		nodes, _ := cmd.Flags().GetStringSlice("nodes")
		report, err := app.Engine.Run(ctx, nodes)
		if err != nil {
			return errs.Wrap(err, "auto pass")
		}

		return printf(cmd, "auto pass %s: %d records, created [%s], updated %d, forced [%s]\n",
			report.RunID, report.Records, joinIDs(report.Created), report.Updated, strings.Join(report.Forced, ","))
	}),
}

func init() {
	rootCmd.AddCommand(autoCmd)

	autoCmd.Flags().StringSlice("nodes", nil, "Only consider these nodes (overrides tracker.auto_nodes)")
}

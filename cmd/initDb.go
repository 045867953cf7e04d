package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	"ctt/internal/errs"
	"ctt/internal/usecase/reconcile"
)

var initDbResetAuto bool

// initDbCmd only reports: withApp has already migrated and seeded the store.
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the issue tables and the seed row",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if initDbResetAuto {
			if err := reconcile.ClearLastRun(ctx, app.Cache); err != nil {
				return err
			}
			logging.Info(ctx, "last auto run report cleared")
		}

		logging.Info(ctx, "init-db finished", slog.String("database_dsn", app.Config.Database.DSN))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s\n", app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	initDbCmd.Flags().BoolVar(&initDbResetAuto, "reset-auto", false, "forget the stored report of the last auto pass")
	rootCmd.AddCommand(initDbCmd)
}

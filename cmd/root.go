package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"ctt/internal/bootstrap/logging"
	"ctt/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ctt",
	Short: "Cluster Ticket Tracker",
	Long: "ctt tracks node issues for an HPC cluster and keeps PBS in step with them:\n" +
		"nodes with open issues are drained, closing an issue resumes them, and\n" +
		"`ctt auto` opens issues for nodes PBS reports as down or offline.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line. Errors are logged here once and returned so
// main can pick the exit code.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithLogger(ctx, logging.New(rootCmd.ErrOrStderr(), "info"))
	ctx = logging.WithAttrs(ctx, slog.String("app", "ctt"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
}

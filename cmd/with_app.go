package cmd

import (
	"context"
	"log/slog"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"ctt/internal/bootstrap"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/usecase/tracker"
)

func withApp(run func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		logger := logging.New(cmd.ErrOrStderr(), app.Config.Log.Level)
		ctx = logging.WithLogger(ctx, logger)
		cmd.SetContext(ctx)

		// The store is created on first use.
		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "prepare database")
		}

		if err := run(cmd, args, app); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

// currentActor maps the login name to its configured group.
func currentActor(app *bootstrap.App) (tracker.Actor, error) {
	u, err := user.Current()
	if err != nil {
		return tracker.Actor{}, errs.Wrap(err, "look up current user")
	}
	group, ok := app.Config.GroupOf(u.Username)
	if !ok {
		return tracker.Actor{}, errs.Wrapf(domainctt.ErrUnknownUser, "user %s", u.Username)
	}
	return tracker.Actor{Name: u.Username, Group: group}, nil
}

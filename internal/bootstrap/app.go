package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"ctt/internal/bootstrap/config"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/infrastructure/persistence/sqlite/model"
	"ctt/internal/ports"
	"ctt/internal/usecase/reconcile"
	"ctt/internal/usecase/tracker"
)

// App holds everything a command needs once fx has wired the graph.
type App struct {
	Config  config.Config
	DB      *gorm.DB
	Repo    ports.IssueRepository
	Cache   ports.Cache
	Tracker *tracker.Service
	Engine  *reconcile.Engine
}

// InitSchema migrates every table and writes the seed row on an empty store.
// Running it again is harmless.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	if err := a.Repo.EnsureSeed(ctx, domainctt.FormatTime(time.Now())); err != nil {
		return errs.Wrap(err, "seed issue table")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

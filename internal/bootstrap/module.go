package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"ctt/internal/bootstrap/config"
	"ctt/internal/bootstrap/database"
	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	cacheinfra "ctt/internal/infrastructure/cache"
	metricsinfra "ctt/internal/infrastructure/metrics"
	sqliterepo "ctt/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ctt/internal/infrastructure/persistence/sqlite/uow"
	"ctt/internal/infrastructure/scheduler"
	"ctt/internal/ports"
	"ctt/internal/usecase/reconcile"
	"ctt/internal/usecase/tracker"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIssueRepository,
			fx.As(new(ports.IssueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideScheduler),
	fx.Provide(provideMetrics),
	fx.Provide(provideTopology),
	fx.Provide(provideTracker),
	fx.Provide(provideEngine),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideScheduler(ctx context.Context, cfg config.Config) (ports.Scheduler, error) {
	profile, err := scheduler.LoadProfile(cfg.Scheduler.Profile)
	if err != nil {
		return nil, err
	}
	logging.Debug(
		logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"scheduler profile loaded",
		slog.String("admin_host", profile.AdminHost),
		slog.String("profile", cfg.Scheduler.Profile),
	)
	return scheduler.NewPBS(profile, scheduler.ExecRunner{}, cfg.Scheduler.TimeoutSeconds), nil
}

func provideMetrics(cfg config.Config) ports.Metrics {
	return metricsinfra.NewRecorder(cfg.Cluster.Name, cfg.Metrics.Textfile)
}

// provideTopology resolves the blade layout from the name of the host ctt runs on.
func provideTopology(ctx context.Context, cfg config.Config) domainctt.Topology {
	host, err := os.Hostname()
	if err != nil {
		logging.Warn(ctx, "hostname unavailable, using default topology", slog.Any("err", err))
	}
	return domainctt.TopologyForHost(host, domainctt.TopologySettings{
		SlotsPerIru:            cfg.Topology.SlotsPerIru,
		NodesPerBlade:          cfg.Topology.NodesPerBlade,
		AlternatePrefix:        cfg.Topology.AlternatePrefix,
		AlternateNodesPerBlade: cfg.Topology.AlternateNodesPerBlade,
	})
}

func provideTracker(
	cfg config.Config,
	repo ports.IssueRepository,
	uow ports.UnitOfWork,
	sched ports.Scheduler,
	topology domainctt.Topology,
) *tracker.Service {
	return tracker.NewService(repo, uow, sched, tracker.Options{
		Cluster:         cfg.Cluster.Name,
		Enforcement:     cfg.Tracker.Enforcement,
		DefaultSeverity: cfg.Tracker.DefaultSeverity,
		Audience:        cfg.GroupNames(),
		StrictNodes:     cfg.Tracker.StrictNodes,
		AttachLocation:  cfg.Tracker.AttachLocation,
		Topology:        topology,
	})
}

type engineParams struct {
	fx.In

	Config    config.Config
	Repo      ports.IssueRepository
	UOW       ports.UnitOfWork
	Scheduler ports.Scheduler
	Tracker   *tracker.Service
	Cache     ports.Cache
	Metrics   ports.Metrics
}

func provideEngine(p engineParams) *reconcile.Engine {
	return reconcile.NewEngine(p.Repo, p.UOW, p.Scheduler, p.Tracker, p.Cache, p.Metrics, reconcile.Options{
		Enforcement:   p.Config.Tracker.Enforcement,
		MaxIssuesOpen: p.Config.Tracker.MaxIssuesOpen,
		MaxIssuesRun:  p.Config.Tracker.MaxIssuesRun,
		AutoSeverity:  p.Config.Tracker.AutoSeverity,
		AutoNodes:     p.Config.Tracker.AutoNodes,
	})
}

type appParams struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Repo    ports.IssueRepository
	Cache   ports.Cache
	Tracker *tracker.Service
	Engine  *reconcile.Engine
}

func provideApp(p appParams) *App {
	return &App{
		Config:  p.Config,
		DB:      p.DB,
		Repo:    p.Repo,
		Cache:   p.Cache,
		Tracker: p.Tracker,
		Engine:  p.Engine,
	}
}

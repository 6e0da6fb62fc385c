package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"trustlab/internal/bootstrap/config"
	"trustlab/internal/bootstrap/database"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	cacheinfra "trustlab/internal/infrastructure/cache"
	"trustlab/internal/infrastructure/catalog"
	"trustlab/internal/infrastructure/notify"
	sqliterepo "trustlab/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "trustlab/internal/infrastructure/persistence/sqlite/uow"
	"trustlab/internal/ports"
	"trustlab/internal/usecase/labvalidation"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideCatalogWatcher),
	fx.Provide(provideCatalogSource),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewLabRepository,
			fx.As(new(ports.LabRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewValidationRepository,
			fx.As(new(ports.ValidationRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideNotifier),
	fx.Provide(provideService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string          `name:"configFile"`
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

// provideCatalogWatcher returns nil when no catalog file is configured or watching is off.
func provideCatalogWatcher(ctx context.Context, cfg config.Config) (*catalog.Watcher, error) {
	path := strings.TrimSpace(cfg.Matching.CatalogFile)
	if path == "" || !cfg.Matching.WatchFile {
		return nil, nil
	}
	w, err := catalog.NewWatcher(path)
	if err != nil {
		return nil, err
	}
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"specialty catalog loaded",
		slog.String("path", path),
		slog.Int("specialties", len(w.Catalog())),
	)
	return w, nil
}

func provideCatalogSource(cfg config.Config, w *catalog.Watcher) (ports.CatalogSource, error) {
	if w != nil {
		return w, nil
	}
	path := strings.TrimSpace(cfg.Matching.CatalogFile)
	if path == "" {
		return ports.StaticCatalog(validation.DefaultCatalog()), nil
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return ports.StaticCatalog(c), nil
}

func provideApp(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, w *catalog.Watcher) *App {
	app := &App{
		Config:  cfg,
		DB:      db,
		Catalog: w,
	}
	if cfg.Database.AutoMigrate {
		lc.Append(fx.Hook{
			OnStart: app.InitSchema,
		})
	}
	return app
}

func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) ports.Cache {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "none":
		return cacheinfra.NoopCache{}
	case "redis":
		rc := cacheinfra.NewRedisCache(cacheinfra.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				// Startup continues without redis; the service treats cache errors as misses.
				if err := rc.Ping(startCtx); err != nil {
					logging.Warn(logCtx, "redis cache unreachable", slog.String("addr", cfg.Cache.Redis.Addr), slog.Any("err", errs.Loggable(err)))
				}
				return nil
			},
			OnStop: func(_ context.Context) error {
				return rc.Close()
			},
		})
		return rc
	default:
		return cacheinfra.NewSQLiteCache(db)
	}
}

func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.Notifier, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Notify.Driver), "nats") {
		return notify.LogNotifier{}, nil
	}

	conn, err := notify.Connect(ctx, cfg.Notify.NATS.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return conn.Drain()
		},
	})
	return notify.NewNATSNotifier(conn, cfg.Notify.NATS.SubjectPrefix), nil
}

type serviceParams struct {
	fx.In

	Config      config.Config
	Labs        ports.LabRepository
	Validations ports.ValidationRepository
	UoW         ports.UnitOfWork
	Cache       ports.Cache
	Notifier    ports.Notifier
	Catalog     ports.CatalogSource
}

func provideService(p serviceParams) *labvalidation.Service {
	return labvalidation.NewService(
		p.Labs,
		p.Validations,
		p.UoW,
		p.Cache,
		p.Notifier,
		p.Catalog,
		labvalidation.WithCacheTTL(p.Config.Cache.TTL),
	)
}

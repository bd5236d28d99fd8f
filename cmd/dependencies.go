package cmd

import (
	"context"

	"quant-platform/config"
	"quant-platform/internal/model"
	"quant-platform/internal/repository"
	"quant-platform/internal/service"
	"quant-platform/pkg/cache"
	"quant-platform/pkg/database"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/telegram"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AppDependency struct {
	db        *database.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}

	if cfg.Telegram.BotToken != "" {
		notifier, err := telegram.NewNotifier(&cfg.Telegram)
		if err != nil {
			log.Error("Failed to create telegram notifier, alerts disabled", zap.Error(err))
		} else {
			log = log.WithAlertSink(notifier, zapcore.ErrorLevel)
		}
	}

	db, err := database.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
			_ = db.Close()
			log.Error("Failed to migrate database", zap.Error(err))
			return nil, err
		}
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
	}, nil
}

// NewServices wires repositories and services on top of the dependencies.
func (d *AppDependency) NewServices() (*repository.Repository, *service.Service, error) {
	sqlDB, err := d.db.DB.DB()
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewRepository(d.cfg, d.db.DB, d.log)
	return repo, service.NewService(d.cfg, d.log, repo, d.cache, sqlDB), nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	_ = d.log.Sync()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

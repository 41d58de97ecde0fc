package main

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"club-registration/internal/clubconfig"
	"club-registration/internal/config"
	"club-registration/internal/lock"
	"club-registration/internal/logging"
	"club-registration/internal/notify"
	"club-registration/internal/registration"
	"club-registration/internal/sheets"
)

// app holds the wired components shared by serve and the config commands.
type app struct {
	cfg         config.Config
	logger      *zap.Logger
	store       sheets.Store
	rdb         *goredis.Client
	notifier    notify.Notifier
	configStore *clubconfig.Store
	sink        *registration.Sink
	provisioner *registration.Provisioner
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	store, err := sheets.NewStore(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.store = store

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := lock.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, using in-process creation guard", zap.Error(err))
		} else {
			a.rdb = rdb
			locker = lock.NewRedis(rdb, cfg.LockTTL, logger)
		}
	}

	a.notifier, err = notify.New(cfg.Telegram, logger)
	if err != nil {
		logger.Warn("telegram notifier disabled", zap.Error(err))
		a.notifier = notify.Nop{}
	}

	a.configStore, err = clubconfig.New(clubconfig.Options{
		Store:   store,
		FixedID: cfg.ConfigSpreadsheetID,
		Locker:  locker,
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sink = registration.NewSink(store, a.notifier, nil, logger)
	a.provisioner = registration.NewProvisioner(store, a.configStore, locker, a.notifier, logger)
	return a, nil
}

// Close drains pending notifications and releases connections.
func (a *app) Close() {
	if t, ok := a.notifier.(*notify.Telegram); ok {
		t.Wait()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("redis close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

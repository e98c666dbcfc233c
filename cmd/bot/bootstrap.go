package main

import (
	"context"
	"fmt"
	"os"

	"jongga-bot/internal/broker/brokerobs"
	"jongga-bot/internal/broker/kis"
	"jongga-bot/internal/engine"
	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/metrics"
	"jongga-bot/internal/notify"
	"jongga-bot/internal/store"
	"jongga-bot/internal/tradelog"
)

type app struct {
	cfg      *store.Config
	broker   interfaces.Broker
	trades   *tradelog.Store
	telegram *notify.Telegram // nil when unconfigured
	notifier interfaces.Notifier
	engine   *engine.Engine
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Info(ctx, "Config loaded", "path", configPath, "mode", cfg.Mode, "dry_run", cfg.DryRun)

	appKey, err := requireEnv("KIS_APP_KEY")
	if err != nil {
		return nil, err
	}
	appSecret, err := requireEnv("KIS_APP_SECRET")
	if err != nil {
		return nil, err
	}
	token, err := requireEnv("KIS_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	accountNo, err := requireEnv("KIS_ACCOUNT_NO")
	if err != nil {
		return nil, err
	}
	htsID, err := requireEnv("KIS_HTS_ID")
	if err != nil {
		return nil, err
	}

	brk := brokerobs.Wrap(kis.NewClient(kis.Params{
		Mode:        cfg.Mode,
		DryRun:      cfg.DryRun,
		AppKey:      appKey,
		AppSecret:   appSecret,
		AccessToken: token,
		AccountNo:   accountNo,
		HTSID:       htsID,
	}))

	trades, err := tradelog.Open(cfg.TradeDB)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}

	tg, err := notify.FromEnv()
	if err != nil {
		trades.Close()
		return nil, fmt.Errorf("telegram setup: %w", err)
	}
	var notifier interfaces.Notifier = notify.Nop{}
	if tg != nil {
		notifier = tg
	} else {
		logger.Warn(ctx, "TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}

	eng := engine.New(cfg, brk, notifier, trades, engine.NewClock())

	return &app{
		cfg:      cfg,
		broker:   brk,
		trades:   trades,
		telegram: tg,
		notifier: notifier,
		engine:   eng,
	}, nil
}

func (a *app) start(ctx context.Context) {
	if a.cfg.Metrics.Addr != "" {
		go func() {
			logger.Info(ctx, "Metrics endpoint listening", "addr", a.cfg.Metrics.Addr)
			if err := metrics.Serve(a.cfg.Metrics.Addr); err != nil {
				logger.ErrorWithErr(ctx, "Metrics endpoint stopped", err)
			}
		}()
	}
	if a.telegram != nil {
		go a.telegram.Run(ctx, a.engine)
	}
}

func (a *app) close() {
	if a.trades != nil {
		a.trades.Close()
	}
}

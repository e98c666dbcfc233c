// Command bot runs the late-session momentum trading bot against a KIS
// brokerage account. Strategy parameters come from config.yaml; credentials
// come from environment variables (.env is honored).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jongga-bot/internal/eod"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/trace"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := trace.Init(); err != nil {
		logger.ErrorWithErr(ctx, "Tracing init failed, continuing without it", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr(shutdownCtx, "Tracing shutdown failed", err)
		}
	}()

	a, err := bootstrap(ctx, *configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Bootstrap failed", err)
		os.Exit(1)
	}
	defer a.close()

	a.start(ctx)
	a.notifier.Notify(ctx, fmt.Sprintf("🤖 Bot started (%s%s)", a.cfg.Mode, dryRunSuffix(a.cfg.DryRun)))

	err = a.engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Engine stopped with error", err)
	}

	// Flush a summary for whatever traded today before going down.
	exitCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if path, err := eod.SummarizeDay(exitCtx, a.trades, time.Now()); err == nil && path != "" {
		logger.Info(exitCtx, "Final day summary exported", "path", path)
	}
	a.notifier.Notify(exitCtx, "🛑 Bot stopped.")
	logger.Info(exitCtx, "Shutdown complete")
}

func dryRunSuffix(dry bool) string {
	if dry {
		return ", dry-run"
	}
	return ""
}

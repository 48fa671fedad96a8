package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pudottapommin/pubcommonid/config"
	"github.com/pudottapommin/pubcommonid/internal/app"
)

var pCfg = new(atomic.Pointer[config.Config])

func main() {
	cfg := new(config.Config)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	pCfg.Store(cfg)

	logLvl := slog.LevelWarn
	if !cfg.IsProd {
		logLvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLvl}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webApp := app.New(ctx, pCfg, logger)
	if err := webApp.Run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

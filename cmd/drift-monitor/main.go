package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/payflow/internal/app/driftmonitor"
	"github.com/magabrotheeeer/payflow/internal/config"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9091", "address of the /metrics listener")
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if cfg.Env == config.EnvLocal {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	logger.Info("starting drift monitor", slog.String("env", cfg.Env), slog.String("queue", cfg.Queue))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := driftmonitor.New(ctx, cfg, *metricsAddr, logger)
	if err != nil {
		logger.Error("failed to initialize drift monitor", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("drift monitor stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("drift monitor stopped gracefully")
}

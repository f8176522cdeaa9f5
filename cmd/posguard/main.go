package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/posguard/internal/app"
	"github.com/dropDatabas3/posguard/internal/config"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

var version = "dev"

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config (optional)")
		envFile    = flag.String("env-file", ".env", "Env file loaded before config; missing file is ignored")
	)
	flag.Parse()

	// .env no pisa variables ya exportadas
	envLoaded := godotenv.Load(*envFile) == nil

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Fatal("config load failed", logger.Err(err))
	}
	if cfg.App.Version == "" {
		cfg.App.Version = version
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Service: cfg.App.Name, Version: cfg.App.Version})
	defer func() { _ = logger.Sync() }()
	log := logger.L()
	log.Info("starting",
		logger.String("env", cfg.App.Env),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("env_file", envLoaded))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, log)

	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal("build failed", logger.Err(err))
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		a.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
	log.Info("bye")
}

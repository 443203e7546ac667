package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dietolog/internal/agent"
	"dietolog/internal/archive"
	"dietolog/internal/config"
	"dietolog/internal/llm"
	"dietolog/internal/prompt"
	"dietolog/internal/server"
	"dietolog/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.Path(), "path to config file")
	flag.Parse()

	// Missing .env is fine; keys can come from the real environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Server.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	arc, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer arc.Close()

	gateway, err := llm.NewGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building LLM gateway: %w", err)
	}

	svc := agent.New(cfg, gateway, prompt.Default, st, arc, logger)

	logger.Info("starting",
		zap.String("config", *configPath),
		zap.String("data_dir", cfg.DataDir),
		zap.String("provider", string(cfg.LLMProvider)))
	return server.New(svc, cfg, logger).Start(ctx)
}

func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zcfg.Development = true
	}
	return zcfg.Build()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/config"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/entrypoint"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := entrypoint.NewHandler(false, log)
	err = handler.RunApp("packager-runner-server", version, func() error {
		app, err := NewServerApp(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		log.Info("server listening", zap.String("socket", app.Addr()), zap.String("workspace", cfg.Workspace.Path))
		return app.Run(ctx)
	})
	if err != nil {
		os.Exit(1)
	}
}

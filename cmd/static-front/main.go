package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tckz/static-front/internal/app"
	"github.com/tckz/static-front/internal/config"
	"github.com/tckz/static-front/internal/logger"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", "error", err.Error())
	}

	go func() {
		if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", "error", err.Error())
		}
	}()

	logger.Info("static-front started",
		"version", version,
		"port", cfg.AppPort,
		"store", cfg.StoreDriver,
	)

	<-ctx.Done()

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", "error", err.Error())
	}

	logger.Info("static-front stopped cleanly")
}
